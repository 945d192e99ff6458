package testfixtures

import (
	"context"
	"sync"

	"github.com/example/schoolsoft-sync/internal/schoolsoft"
)

// ScriptedAPI is a scripted stand-in for the wire client. Tests assign the
// responses and errors they want each call to produce; call counters record
// how often each endpoint was exercised.
type ScriptedAPI struct {
	mu sync.Mutex

	LoginResponse schoolsoft.LoginResponse
	LoginErr      error
	LoginCalls    int

	TokenResponse schoolsoft.TokenResponse
	TokenErr      error
	TokenCalls    int

	Lessons     []schoolsoft.LessonRecord
	LessonsErr  error
	LessonCalls int
}

// NewScriptedAPI returns an empty scripted client. Every call succeeds with
// zero-value responses until the test assigns something else.
func NewScriptedAPI() *ScriptedAPI {
	return &ScriptedAPI{}
}

func (a *ScriptedAPI) Login(_ context.Context, _, _, _ string, _ int) (schoolsoft.LoginResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LoginCalls++
	if a.LoginErr != nil {
		return schoolsoft.LoginResponse{}, a.LoginErr
	}
	return a.LoginResponse, nil
}

func (a *ScriptedAPI) RequestToken(_ context.Context, _, _ string) (schoolsoft.TokenResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.TokenCalls++
	if a.TokenErr != nil {
		return schoolsoft.TokenResponse{}, a.TokenErr
	}
	return a.TokenResponse, nil
}

func (a *ScriptedAPI) StudentLessons(_ context.Context, _, _ string, _ int) ([]schoolsoft.LessonRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LessonCalls++
	if a.LessonsErr != nil {
		return nil, a.LessonsErr
	}
	return a.Lessons, nil
}
