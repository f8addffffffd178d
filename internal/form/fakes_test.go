package form

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// memRepo is an in-memory Repository.  Forms are stored as JSON so loads
// never alias what the caller saved.
type memRepo struct {
	mu        sync.Mutex
	forms     map[string][]byte
	subs      []*Submission
	saves     int
	countErr  error
	createErr error
}

func newMemRepo(forms ...*Form) *memRepo {
	r := &memRepo{forms: map[string][]byte{}}
	for _, f := range forms {
		_ = r.SaveForm(context.Background(), f)
	}
	r.saves = 0
	return r
}

func (r *memRepo) LoadForm(_ context.Context, id string) (*Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	var f Form
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *memRepo) SaveForm(_ context.Context, f *Form) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[f.ID] = raw
	r.saves++
	return nil
}

func (r *memRepo) CountSubmissions(_ context.Context, formID, ip string, since time.Time) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subs {
		if s.FormID == formID && s.IPAddress == ip && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CreateSubmission(_ context.Context, s *Submission) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, s)
	return nil
}

func (r *memRepo) submissions() []*Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Submission(nil), r.subs...)
}

type recordingNotifier struct {
	calls int
	err   error
}

func (n *recordingNotifier) NotifySubmission(context.Context, *Form, *Submission) error {
	n.calls++
	return n.err
}
