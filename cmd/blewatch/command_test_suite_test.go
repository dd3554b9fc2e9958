package main

import (
	"bytes"
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/platform"
	"github.com/srg/blewatch/internal/testutils"
	"github.com/srg/blewatch/pkg/config"
	"github.com/stretchr/testify/suite"
)

// fakePlatform is a closable manager handed to commands instead of the real backend
type fakePlatform struct {
	central.Manager

	mu     sync.Mutex
	closed bool
}

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlatform) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CommandTestSuite runs blewatch commands against fake adapters.
type CommandTestSuite struct {
	suite.Suite

	Manager    *testutils.FakeManager
	Platform   *fakePlatform
	Adapter    *testutils.FakeAdapter
	LastConfig *config.Config

	originalNewManager func(*config.Config, *logrus.Logger) (platform.Manager, error)
}

func (s *CommandTestSuite) SetupTest() {
	s.Adapter = testutils.NewFakeAdapter("fake0")
	s.Manager = testutils.NewFakeManager(s.Adapter)
	s.Platform = &fakePlatform{Manager: s.Manager}
	s.LastConfig = nil

	s.originalNewManager = newManager
	newManager = func(cfg *config.Config, _ *logrus.Logger) (platform.Manager, error) {
		s.LastConfig = cfg
		return s.Platform, nil
	}

	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	newManager = s.originalNewManager
}

// ExecuteCommand runs the root command with args, returns stdout and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag of cmd and its children to its default, since cobra
// commands are package globals shared by all tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
