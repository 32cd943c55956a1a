package service

import (
	"context"
	"sync"
	"time"

	"policybolt/internal/model"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.UserID] = u
	}
	return r
}

func (r *fakeUserRepo) UpsertUser(ctx context.Context, u *model.User) error {
	if existing, ok := r.users[u.UserID]; ok {
		u.StripeCustomerID = existing.StripeCustomerID
	}
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	for _, u := range r.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	if u, ok := r.users[userID]; ok {
		u.StripeCustomerID = &customerID
	}
	return nil
}

type fakeSubRepo struct {
	subs map[string]*model.Subscription
}

func newFakeSubRepo(subs ...*model.Subscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: map[string]*model.Subscription{}}
	for _, s := range subs {
		r.subs[s.UserID] = s
	}
	return r
}

func (r *fakeSubRepo) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	s, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubRepo) GetByStripeSubscriptionID(ctx context.Context, id string) (*model.Subscription, error) {
	for _, s := range r.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSubRepo) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	cp := *sub
	cp.EndedAt = nil
	if existing, ok := r.subs[sub.UserID]; ok {
		if cp.Coupon == nil {
			cp.Coupon = existing.Coupon
		}
		if sameStripeID(existing.StripeSubscriptionID, cp.StripeSubscriptionID) {
			cp.EndedAt = existing.EndedAt
		}
	}
	r.subs[sub.UserID] = &cp
	return nil
}

func sameStripeID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *fakeSubRepo) MarkEnded(ctx context.Context, userID string, endedAt time.Time) (bool, error) {
	s, ok := r.subs[userID]
	if !ok || s.EndedAt != nil {
		return false, nil
	}
	s.Status = model.SubscriptionCanceled
	s.CurrentPeriodEnd = &endedAt
	s.EndedAt = &endedAt
	return true, nil
}

func (r *fakeSubRepo) SetCoupon(ctx context.Context, userID, coupon string) error {
	if s, ok := r.subs[userID]; ok {
		s.Coupon = &coupon
	}
	return nil
}

type fakeProjectRepo struct {
	projects map[string]*model.Project
}

func newFakeProjectRepo(projects ...*model.Project) *fakeProjectRepo {
	r := &fakeProjectRepo{projects: map[string]*model.Project{}}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	return r
}

func (r *fakeProjectRepo) CreateWithinLimit(ctx context.Context, p *model.Project, maxProjects int) error {
	count := 0
	for _, existing := range r.projects {
		if existing.UserID == p.UserID {
			count++
		}
	}
	if maxProjects > 0 && count >= maxProjects {
		return repository.ErrProjectLimitReached
	}
	p.ID = uuid.NewString()
	p.Status = model.ProjectActive
	p.GitHubSynced = false
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	out := []model.Project{}
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) UpdateDetails(ctx context.Context, p *model.Project) error {
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) Delete(ctx context.Context, id string) error {
	delete(r.projects, id)
	return nil
}

func (r *fakeProjectRepo) SetInstallation(ctx context.Context, id string, installationID int64) error {
	if p, ok := r.projects[id]; ok {
		p.GitHubInstallationID = &installationID
		p.GitHubSynced = true
		p.Status = model.ProjectActive
	}
	return nil
}

func (r *fakeProjectRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if p, ok := r.projects[id]; ok {
		p.LastSyncedAt = &at
	}
	return nil
}

func (r *fakeProjectRepo) DeactivateAllForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for _, p := range r.projects {
		if p.UserID == userID {
			p.Status = model.ProjectInactive
			p.GitHubSynced = false
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type fakePolicyRepo struct {
	policies map[string]*model.Policy
	counters map[string]int
}

func newFakePolicyRepo(policies ...*model.Policy) *fakePolicyRepo {
	r := &fakePolicyRepo{policies: map[string]*model.Policy{}, counters: map[string]int{}}
	for _, p := range policies {
		r.policies[p.ID] = p
	}
	return r
}

func (r *fakePolicyRepo) Create(ctx context.Context, p *model.Policy) error {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	cp := *p
	r.policies[p.ID] = &cp
	return nil
}

func (r *fakePolicyRepo) GetByID(ctx context.Context, id string) (*model.Policy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePolicyRepo) ListByProject(ctx context.Context, projectID string) ([]model.Policy, error) {
	out := []model.Policy{}
	for _, p := range r.policies {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePolicyRepo) GetActiveByProject(ctx context.Context, projectID string) (*model.Policy, error) {
	for _, p := range r.policies {
		if p.ProjectID == projectID && p.Status == model.PolicyActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePolicyRepo) Approve(ctx context.Context, id string) error {
	target, ok := r.policies[id]
	if !ok || !target.Approvable() {
		return repository.ErrPolicyNotApprovable
	}
	for _, p := range r.policies {
		if p.ProjectID == target.ProjectID && p.Status == model.PolicyActive {
			p.Status = model.PolicyInactive
		}
	}
	target.Status = model.PolicyActive
	return nil
}

func (r *fakePolicyRepo) Delete(ctx context.Context, id string) error {
	delete(r.policies, id)
	return nil
}

func (r *fakePolicyRepo) IncrementUpdateCounter(ctx context.Context, projectID string) (int, error) {
	r.counters[projectID]++
	return r.counters[projectID], nil
}

type fakeTokenStore struct {
	tokens map[string]repository.GitHubToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]repository.GitHubToken{}}
}

func (s *fakeTokenStore) Put(ctx context.Context, t repository.GitHubToken) error {
	s.tokens[t.ProjectID] = t
	return nil
}

func (s *fakeTokenStore) Get(ctx context.Context, projectID string) (*repository.GitHubToken, error) {
	t, ok := s.tokens[projectID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, projectIDs ...string) error {
	for _, id := range projectIDs {
		delete(s.tokens, id)
	}
	return nil
}

type sentMessage struct {
	Queue   string
	Payload []byte
}

type fakeQueue struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (q *fakeQueue) Send(ctx context.Context, queue string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, sentMessage{Queue: queue, Payload: payload})
	return nil
}

func (q *fakeQueue) ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Delete(ctx context.Context, queue string, msgIDs []int64) error {
	return nil
}

type sentEmail struct {
	To       string
	Template EmailTemplate
	Data     EmailData
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (e *fakeEmail) Send(ctx context.Context, to string, tmpl EmailTemplate, data EmailData) error {
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, sentEmail{To: to, Template: tmpl, Data: data})
	return nil
}

type fakeArchive struct {
	archived []string
	err      error
}

func (a *fakeArchive) Archive(ctx context.Context, p *model.Policy) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.archived = append(a.archived, p.ID)
	return ArchiveKey(p), nil
}

func (a *fakeArchive) DownloadURL(ctx context.Context, p *model.Policy) (string, error) {
	for _, id := range a.archived {
		if id == p.ID {
			return "https://storage.example.com/" + ArchiveKey(p), nil
		}
	}
	return "", ErrPolicyNotArchived
}
