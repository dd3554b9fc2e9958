package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/testutils"
	"github.com/srg/blewatch/pkg/config"
	"github.com/stretchr/testify/suite"
)

type WatchCommandTestSuite struct {
	CommandTestSuite
}

func (s *WatchCommandTestSuite) injectOnStart(events ...central.Event) {
	s.Adapter.OnStartScan = func() {
		s.Adapter.Inject(events...)
	}
}

func (s *WatchCommandTestSuite) lifecycle() []central.Event {
	at := func(sec int) time.Time {
		return time.Date(2026, 1, 1, 12, 0, sec, 0, time.UTC)
	}
	return []central.Event{
		{Kind: central.EventDiscovered, Address: testutils.Addr(1), Name: "Thermo", RSSI: -61, Time: at(0)},
		{Kind: central.EventConnected, Address: testutils.Addr(1), Time: at(1)},
		{Kind: central.EventDisconnected, Address: testutils.Addr(1), Time: at(2)},
		{Kind: central.EventDiscovered, Address: testutils.Addr(2), Time: at(3)},
		{Kind: central.EventLost, Address: testutils.Addr(1), Time: at(4)},
	}
}

func (s *WatchCommandTestSuite) TestTextOutput() {
	// GOAL: Verify watch prints every event in order and a summary on voluntary shutdown
	//
	// TEST SCENARIO: five events during scan start → --duration elapses → five lines then the roster summary

	s.injectOnStart(s.lifecycle()...)

	out, err := s.ExecuteCommand("watch", "--duration", "50ms")
	s.Require().NoError(err, "duration elapsing MUST be a clean exit")

	testutils.NewTextAsserter(s.T()).Assert(out, `
12:00:00.000  discovered    00:00:00:00:00:01   -61 dBm  Thermo
12:00:01.000  connected     00:00:00:00:00:01
12:00:02.000  disconnected  00:00:00:00:00:01
12:00:03.000  discovered    00:00:00:00:00:02
12:00:04.000  lost          00:00:00:00:00:01

2 peripherals (1 present, 0 connected), 5 events in 0s
  00:00:00:00:00:01  lost        -61 dBm      4 events  Thermo
  00:00:00:00:00:02  present       0 dBm      1 events  -
`)
	s.NotContains(out, "\x1b[", "output to a non-terminal MUST NOT be colored")

	s.True(s.Adapter.Closed(), "adapter MUST be released on exit")
	s.True(s.Platform.isClosed(), "manager MUST be closed on exit")
}

func (s *WatchCommandTestSuite) TestJSONOutput() {
	s.injectOnStart(s.lifecycle()...)

	out, err := s.ExecuteCommand("watch", "--duration", "50ms", "--format", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T(), testutils.WithIgnoredFields("first_seen", "last_seen")).AssertLines(out,
		`{"kind":"discovered","address":"00:00:00:00:00:01","name":"Thermo","rssi":-61,"time":"2026-01-01T12:00:00Z"}`,
		`{"kind":"connected","address":"00:00:00:00:00:01","time":"2026-01-01T12:00:01Z"}`,
		`{"kind":"disconnected","address":"00:00:00:00:00:01","time":"2026-01-01T12:00:02Z"}`,
		`{"kind":"discovered","address":"00:00:00:00:00:02","time":"2026-01-01T12:00:03Z"}`,
		`{"kind":"lost","address":"00:00:00:00:00:01","time":"2026-01-01T12:00:04Z"}`,
		`{
			"adapter": "fake0",
			"summary": {"total": 2, "present": 1, "connected": 0},
			"peers": [
				{"address": "00:00:00:00:00:01", "name": "Thermo", "last_event": "lost", "present": false, "events": 4},
				{"address": "00:00:00:00:00:02", "last_event": "discovered", "present": true, "events": 1}
			],
			"events": 5,
			"lost": 0,
			"duration": "<<PRESENCE>>"
		}`,
	)
}

func (s *WatchCommandTestSuite) TestNoAdapter() {
	// GOAL: Verify a host without radios fails before any event is printed
	//
	// TEST SCENARIO: manager enumerates nothing → ErrNoAdapterFound, empty stdout

	s.Manager.List = nil

	out, err := s.ExecuteCommand("watch", "--duration", "50ms")

	s.ErrorIs(err, central.ErrNoAdapterFound)
	s.Empty(out)
	s.Contains(FormatUserError(err), "no Bluetooth adapter found")
}

func (s *WatchCommandTestSuite) TestScanRefused() {
	s.Adapter.StartErr = central.ErrBluetoothOff

	_, err := s.ExecuteCommand("watch", "--duration", "50ms")

	s.ErrorIs(err, central.ErrScan)
	s.Equal("Bluetooth is turned off. Turn it on and try again.", FormatUserError(err))
	s.True(s.Adapter.Closed())
}

func (s *WatchCommandTestSuite) TestInvalidFormat() {
	_, err := s.ExecuteCommand("watch", "--format", "xml")

	s.ErrorIs(err, config.ErrInvalidConfig)
	s.Zero(s.Manager.Calls(), "invalid flags MUST fail before touching the adapter")
}

func (s *WatchCommandTestSuite) TestFlagsOverrideConfigFile() {
	// GOAL: Verify flags win over the config file and the file wins over defaults
	//
	// TEST SCENARIO: file sets queue 32 and format json → --queue-size 8 → queue 8, format json

	path := filepath.Join(s.T().TempDir(), "blewatch.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("queue_capacity: 32\noutput_format: json\nlost_timeout: 5s\n"), 0o644))

	_, err := s.ExecuteCommand("watch", "--duration", "10ms", "--config", path, "--queue-size", "8", "--no-duplicates", "--log-level", "debug")
	s.Require().NoError(err)

	s.Require().NotNil(s.LastConfig)
	s.Equal(8, s.LastConfig.QueueCapacity)
	s.Equal(config.OutputFormatJSON, s.LastConfig.OutputFormat)
	s.Equal("5s", s.LastConfig.LostTimeout.String())
	s.False(s.LastConfig.Duplicates)
	s.Equal("debug", s.LastConfig.LogLevel)
}

func (s *WatchCommandTestSuite) TestFaultEndsWatch() {
	s.Adapter.OnStartScan = func() {
		go s.Adapter.Fault(central.ErrBluetoothOff)
	}

	_, err := s.ExecuteCommand("watch")

	s.ErrorIs(err, central.ErrScan)
	s.ErrorIs(err, central.ErrBluetoothOff)
}

func TestWatchCommandTestSuite(t *testing.T) {
	suite.Run(t, new(WatchCommandTestSuite))
}
