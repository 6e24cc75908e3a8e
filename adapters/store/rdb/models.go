package rdb

import "time"

// StateMetaRecord holds store-wide values such as the sealing salt.
// Table name: state_meta
type StateMetaRecord struct {
	Key   string `gorm:"primaryKey;type:text;not null"`
	Value string `gorm:"type:text;not null"`
}

func (StateMetaRecord) TableName() string { return "state_meta" }

// StackRecord is the RDB persistence model for model.StackState.
// Table name: stacks
type StackRecord struct {
	Name         string    `gorm:"primaryKey;type:text;not null"`
	Identity     string    `gorm:"type:text"` // JSON encoded model.Identity
	SSHPublicKey string    `gorm:"type:text"`
	Outputs      string    `gorm:"type:text"` // JSON encoded model.Outputs, empty before the first deployment
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (StackRecord) TableName() string { return "stacks" }

// StackSecretRecord persistence model
type StackSecretRecord struct {
	Stack     string    `gorm:"primaryKey;type:text;not null"`
	Key       string    `gorm:"primaryKey;type:text;not null"`
	Sealed    string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StackSecretRecord) TableName() string { return "stack_secrets" }

// OperationRecord persistence model. A row without FinishedAt locks its stack.
type OperationRecord struct {
	ID         string     `gorm:"primaryKey;type:text;not null"`
	Stack      string     `gorm:"type:text;not null;index"`
	Kind       string     `gorm:"type:text;not null"`
	StartedAt  time.Time  `gorm:"not null;index"`
	FinishedAt *time.Time `gorm:""`
	Result     string     `gorm:"type:text"`
	Error      string     `gorm:"type:text"`
}

func (OperationRecord) TableName() string { return "operations" }
