package lookup

import (
	"context"
	"fmt"
	"os"
	"time"

	"vahan/internal/logger"
)

const profilePrefix = "vh_profile_"

// Service runs one lookup: it owns the profile directory and the browser
// session around a workflow execution.
type Service struct {
	log      *logger.Logger
	launcher Launcher
	workflow *Workflow
	// TempDir is the parent for profile directories; empty means os.TempDir.
	TempDir string
}

func NewService(launcher Launcher, workflow *Workflow, log *logger.Logger) *Service {
	return &Service{log: log, launcher: launcher, workflow: workflow}
}

// Lookup always returns a record, whichever step failed.
func (s *Service) Lookup(ctx context.Context, reg, chassis string) Result {
	start := time.Now()
	mobile, err := s.run(ctx, reg, chassis)
	res := NewResult(mobile, err, time.Since(start))
	if res.Success {
		s.log.LogInfof("lookup for %s succeeded in %.2fs", reg, res.ResponseTimeSeconds)
	} else {
		s.log.LogWarnf("lookup for %s failed in %.2fs: %s", reg, res.ResponseTimeSeconds, res.Error)
	}
	return res
}

func (s *Service) run(ctx context.Context, reg, chassis string) (mobile string, err error) {
	defer func() {
		if p := recover(); p != nil {
			mobile = ""
			err = &StepError{Kind: KindPanic, Msg: fmt.Sprint(p)}
		}
	}()

	profile, err := os.MkdirTemp(s.TempDir, profilePrefix)
	if err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(profile); rmErr != nil {
			s.log.LogWarnf("remove profile dir %s: %v", profile, rmErr)
		}
	}()

	session, err := s.launcher.Launch(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.log.LogWarnf("close browser: %v", cerr)
		}
	}()

	return s.workflow.Execute(ctx, session, reg, chassis)
}
