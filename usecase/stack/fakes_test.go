package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/keygen"
)

type memState struct {
	mu      sync.Mutex
	stacks  map[string]model.StackState
	secrets map[string]string
	ops     []*model.Operation
}

func newMemState() *memState {
	return &memState{stacks: map[string]model.StackState{}, secrets: map[string]string{}}
}

func (m *memState) GetStack(_ context.Context, name string) (*model.StackState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stacks[name]
	if !ok {
		return nil, model.ErrStackNotFound
	}
	return &st, nil
}

func (m *memState) SaveStack(_ context.Context, st *model.StackState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stacks[st.Name] = *st
	return nil
}

func (m *memState) DeleteStack(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stacks[name]; !ok {
		return model.ErrStackNotFound
	}
	delete(m.stacks, name)
	for k := range m.secrets {
		if len(k) > len(name) && k[:len(name)+1] == name+"/" {
			delete(m.secrets, k)
		}
	}
	return nil
}

func (m *memState) PutSecret(_ context.Context, stack, key string, v model.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[stack+"/"+key] = v.Reveal()
	return nil
}

func (m *memState) GetSecret(_ context.Context, stack, key string) (model.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[stack+"/"+key]
	if !ok {
		return model.Secret{}, model.ErrSecretNotFound
	}
	return model.NewSecret(v), nil
}

func (m *memState) BeginOperation(_ context.Context, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ops {
		if o.Stack == op.Stack && o.FinishedAt == nil {
			return model.ErrStateLocked
		}
	}
	c := *op
	m.ops = append(m.ops, &c)
	return nil
}

func (m *memState) FinishOperation(_ context.Context, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ops {
		if o.ID == op.ID {
			*o = *op
			return nil
		}
	}
	return fmt.Errorf("operation %s not found", op.ID)
}

func (m *memState) ListOperations(_ context.Context, stack string, limit int) ([]*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Operation
	for _, o := range m.ops {
		if o.Stack == stack {
			c := *o
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memState) Unlock(_ context.Context, stack string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, o := range m.ops {
		if o.Stack == stack && o.FinishedAt == nil {
			o.FinishedAt = &now
			o.Result = "interrupted"
			n++
		}
	}
	return n, nil
}

type fakeDirectory struct {
	mu            sync.Mutex
	calls         []string
	passwords     map[string]bool
	nextKey       int
	addPasswordFn func() error
}

func newFakeDirectory() *fakeDirectory { return &fakeDirectory{passwords: map[string]bool{}} }

func (d *fakeDirectory) record(c string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *fakeDirectory) EnsureApplication(_ context.Context, name string) (*model.Application, error) {
	d.record("EnsureApplication:" + name)
	return &model.Application{ObjectID: "app-obj", AppID: "app-id"}, nil
}

func (d *fakeDirectory) EnsureServicePrincipal(_ context.Context, appID string) (*model.ServicePrincipal, error) {
	d.record("EnsureServicePrincipal:" + appID)
	return &model.ServicePrincipal{ObjectID: "sp-obj", AppID: appID}, nil
}

func (d *fakeDirectory) AddPassword(_ context.Context, sp, _ string, end time.Time) (*model.PasswordCredential, error) {
	d.record("AddPassword:" + sp + ":" + end.Format(time.RFC3339))
	if d.addPasswordFn != nil {
		if err := d.addPasswordFn(); err != nil {
			return nil, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextKey++
	key := fmt.Sprintf("key-%d", d.nextKey)
	d.passwords[key] = true
	return &model.PasswordCredential{KeyID: key, Secret: model.NewSecret("secret-" + key)}, nil
}

func (d *fakeDirectory) HasPassword(_ context.Context, _ string, keyID string) (bool, error) {
	d.record("HasPassword:" + keyID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.passwords[keyID], nil
}

func (d *fakeDirectory) DeleteApplication(_ context.Context, objectID string) error {
	d.record("DeleteApplication:" + objectID)
	return nil
}

type fakeProvisioner struct {
	mu           sync.Mutex
	calls        []string
	plans        []*model.Plan
	provisionErr error
	outputs      *model.Outputs
}

func (p *fakeProvisioner) record(c string, plan *model.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	if plan != nil {
		p.plans = append(p.plans, plan)
	}
}

func (p *fakeProvisioner) Provision(_ context.Context, plan *model.Plan) (*model.Outputs, error) {
	p.record("Provision", plan)
	if p.provisionErr != nil {
		return nil, p.provisionErr
	}
	return p.outputs, nil
}

func (p *fakeProvisioner) Preview(_ context.Context, plan *model.Plan) ([]model.Change, error) {
	p.record("Preview", plan)
	return []model.Change{{ResourceID: "/subscriptions/s/resourceGroups/kanebernetes", ChangeType: "Create"}}, nil
}

func (p *fakeProvisioner) Render(plan *model.Plan) ([]byte, error) {
	p.record("Render", plan)
	return []byte(`{"template":{}}`), nil
}

func (p *fakeProvisioner) Deprovision(context.Context, *model.StackSettings) error {
	p.record("Deprovision", nil)
	return nil
}

func (p *fakeProvisioner) Outputs(context.Context, *model.StackSettings) (*model.Outputs, error) {
	p.record("Outputs", nil)
	if p.outputs == nil {
		return nil, model.ErrStackNotFound
	}
	return p.outputs, nil
}

func (p *fakeProvisioner) Kubeconfig(_ context.Context, out *model.Outputs) ([]byte, error) {
	p.record("Kubeconfig", nil)
	return []byte("kubeconfig-for-" + out.ClusterName), nil
}

type fakeInstaller struct {
	installed []*model.ClusterSpec
	rendered  []*model.ClusterSpec
	err       error
}

func (i *fakeInstaller) Install(_ context.Context, kubeconfig []byte, spec *model.ClusterSpec) error {
	if len(kubeconfig) == 0 {
		return errors.New("empty kubeconfig")
	}
	i.installed = append(i.installed, spec)
	return i.err
}

func (i *fakeInstaller) Render(spec *model.ClusterSpec) (string, error) {
	i.rendered = append(i.rendered, spec)
	return "kind: Namespace\n", nil
}

type harness struct {
	uc        *UseCase
	state     *memState
	dir       *fakeDirectory
	prov      *fakeProvisioner
	installer *fakeInstaller
	keys      int
}

func newHarness() *harness {
	h := &harness{
		state:     newMemState(),
		dir:       newFakeDirectory(),
		prov:      &fakeProvisioner{outputs: &model.Outputs{TenantID: "tenant", ResourceGroupName: "kanebernetes", ClusterName: "kanebernetes", ClientID: "app-id"}},
		installer: &fakeInstaller{},
	}
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	h.uc = &UseCase{
		Provisioner: h.prov,
		Directory:   h.dir,
		Installer:   h.installer,
		State:       h.state,
		GenerateKey: func(bits int) (*keygen.KeyPair, error) {
			h.keys++
			return &keygen.KeyPair{PrivateKeyPEM: []byte(fmt.Sprintf("priv-%d-%d", bits, h.keys)), PublicKey: fmt.Sprintf("ssh-rsa pub-%d", h.keys)}, nil
		},
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	return h
}

func testSettings() *model.StackSettings {
	return &model.StackSettings{
		Project:           "aksstack",
		Stack:             "dev",
		Location:          "westeurope",
		ResourceGroupName: model.DefaultResourceGroupName,
		KubernetesVersion: "1.29.2",
		NodeCount:         3,
		Domain:            "app.example.com",
		Namespace:         "apps",
		AcmeEmail:         "ops@example.com",
	}
}
