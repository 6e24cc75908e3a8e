package rdb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/sealing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const metaKeySalt = "sealing-salt"

// ResultInterrupted marks operations closed by Unlock.
const ResultInterrupted = "interrupted"

// StateRepository implements model.StateStore on a GORM database.
// Secrets are sealed with a key derived from the passphrase and a store-wide salt.
type StateRepository struct {
	db         *gorm.DB
	passphrase string

	mu     sync.Mutex
	sealer *sealing.Sealer
}

// NewStateRepository returns a repository. The passphrase is only needed by
// PutSecret and GetSecret.
func NewStateRepository(db *gorm.DB, passphrase string) *StateRepository {
	return &StateRepository{db: db, passphrase: passphrase}
}

func stackToRecord(st *model.StackState) (*StackRecord, error) {
	id, err := json.Marshal(st.Identity)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	rec := &StackRecord{Name: st.Name, Identity: string(id), SSHPublicKey: st.SSHPublicKey, CreatedAt: st.CreatedAt, UpdatedAt: st.UpdatedAt}
	if st.Outputs != nil {
		out, err := json.Marshal(st.Outputs)
		if err != nil {
			return nil, fmt.Errorf("encode outputs: %w", err)
		}
		rec.Outputs = string(out)
	}
	return rec, nil
}

func stackToModel(r *StackRecord) (*model.StackState, error) {
	st := &model.StackState{Name: r.Name, SSHPublicKey: r.SSHPublicKey, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if r.Identity != "" {
		if err := json.Unmarshal([]byte(r.Identity), &st.Identity); err != nil {
			return nil, fmt.Errorf("decode identity of %s: %w", r.Name, err)
		}
	}
	if r.Outputs != "" {
		st.Outputs = &model.Outputs{}
		if err := json.Unmarshal([]byte(r.Outputs), st.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs of %s: %w", r.Name, err)
		}
	}
	return st, nil
}

func operationToRecord(op *model.Operation) *OperationRecord {
	return &OperationRecord{ID: op.ID, Stack: op.Stack, Kind: string(op.Kind), StartedAt: op.StartedAt, FinishedAt: op.FinishedAt, Result: op.Result, Error: op.Error}
}

func operationToModel(r *OperationRecord) *model.Operation {
	return &model.Operation{ID: r.ID, Stack: r.Stack, Kind: model.OperationKind(r.Kind), StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Result: r.Result, Error: r.Error}
}

func (r *StateRepository) GetStack(ctx context.Context, name string) (*model.StackState, error) {
	var rec StackRecord
	if err := r.db.WithContext(ctx).First(&rec, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrStackNotFound
		}
		return nil, err
	}
	return stackToModel(&rec)
}

// SaveStack inserts or replaces the stack row. CreatedAt of an existing row is kept.
func (r *StateRepository) SaveStack(ctx context.Context, st *model.StackState) error {
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	rec, err := stackToRecord(st)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"identity", "ssh_public_key", "outputs", "updated_at"}),
	}).Create(rec).Error
}

// DeleteStack removes the stack row and its secrets. Operation history is kept.
func (r *StateRepository) DeleteStack(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&StackSecretRecord{}, "stack = ?", name).Error; err != nil {
			return err
		}
		res := tx.Delete(&StackRecord{}, "name = ?", name)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrStackNotFound
		}
		return nil
	})
}

func (r *StateRepository) PutSecret(ctx context.Context, stack, key string, value model.Secret) error {
	s, err := r.getSealer(ctx)
	if err != nil {
		return err
	}
	sealed, err := s.Seal(value.Reveal())
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	rec := &StackSecretRecord{Stack: stack, Key: key, Sealed: sealed, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stack"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"sealed", "updated_at"}),
	}).Create(rec).Error
}

func (r *StateRepository) GetSecret(ctx context.Context, stack, key string) (model.Secret, error) {
	var rec StackSecretRecord
	if err := r.db.WithContext(ctx).First(&rec, "stack = ? AND key = ?", stack, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Secret{}, fmt.Errorf("%w: %s/%s", model.ErrSecretNotFound, stack, key)
		}
		return model.Secret{}, err
	}
	s, err := r.getSealer(ctx)
	if err != nil {
		return model.Secret{}, err
	}
	plain, err := s.Open(rec.Sealed)
	if err != nil {
		return model.Secret{}, fmt.Errorf("open %s/%s: %w", stack, key, err)
	}
	return model.NewSecret(plain), nil
}

// BeginOperation records op as running. It fails with model.ErrStateLocked
// while another operation on the same stack has not finished.
func (r *StateRepository) BeginOperation(ctx context.Context, op *model.Operation) error {
	if op.ID == "" {
		op.ID = "op-" + uuid.NewString()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var running OperationRecord
		err := tx.Where("stack = ? AND finished_at IS NULL", op.Stack).First(&running).Error
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s %s started at %s", model.ErrStateLocked, running.ID, running.Kind, running.StartedAt.Format(time.RFC3339))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(operationToRecord(op)).Error
	})
}

// FinishOperation stamps the finish time and result of a running operation.
func (r *StateRepository) FinishOperation(ctx context.Context, op *model.Operation) error {
	if op.FinishedAt == nil {
		now := time.Now().UTC()
		op.FinishedAt = &now
	}
	res := r.db.WithContext(ctx).Model(&OperationRecord{}).Where("id = ?", op.ID).Updates(map[string]any{
		"finished_at": op.FinishedAt,
		"result":      op.Result,
		"error":       op.Error,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("operation %s not found", op.ID)
	}
	return nil
}

// ListOperations returns the newest operations of stack first. limit <= 0 means all.
func (r *StateRepository) ListOperations(ctx context.Context, stack string, limit int) ([]*model.Operation, error) {
	q := r.db.WithContext(ctx).Where("stack = ?", stack).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []OperationRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Operation, 0, len(recs))
	for i := range recs {
		out = append(out, operationToModel(&recs[i]))
	}
	return out, nil
}

// Unlock closes every unfinished operation of stack as interrupted and
// returns how many were closed.
func (r *StateRepository) Unlock(ctx context.Context, stack string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&OperationRecord{}).
		Where("stack = ? AND finished_at IS NULL", stack).
		Updates(map[string]any{"finished_at": &now, "result": ResultInterrupted})
	return res.RowsAffected, res.Error
}

func (r *StateRepository) getSealer(ctx context.Context) (*sealing.Sealer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealer != nil {
		return r.sealer, nil
	}
	if r.passphrase == "" {
		return nil, fmt.Errorf("state secrets: %w (set AKSSTACK_CONFIG_PASSPHRASE)", sealing.ErrEmptyPassphrase)
	}
	salt, err := r.loadSalt(ctx)
	if err != nil {
		return nil, err
	}
	s, err := sealing.New(r.passphrase, salt)
	if err != nil {
		return nil, err
	}
	r.sealer = s
	return s, nil
}

// loadSalt returns the store-wide salt, creating it on first use.
func (r *StateRepository) loadSalt(ctx context.Context) ([]byte, error) {
	var rec StateMetaRecord
	err := r.db.WithContext(ctx).First(&rec, "key = ?", metaKeySalt).Error
	if err == nil {
		return base64.StdEncoding.DecodeString(rec.Value)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	salt, err := sealing.NewSalt()
	if err != nil {
		return nil, err
	}
	rec = StateMetaRecord{Key: metaKeySalt, Value: base64.StdEncoding.EncodeToString(salt)}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return nil, err
	}
	// Re-read in case a concurrent writer won the insert.
	if err := r.db.WithContext(ctx).First(&rec, "key = ?", metaKeySalt).Error; err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(rec.Value)
}

var _ model.StateStore = (*StateRepository)(nil)
