package factory

import (
	"testing"

	"github.com/coder/quartz"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/poisonedglass/internal/dependencies/mocks"
	"github.com/mcoot/poisonedglass/internal/services/auth"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/storage/memory"
	"github.com/mcoot/poisonedglass/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *quartz.Mock
	MockRandom *mocks.MockRandom // session codes
	MockDraws  *mocks.MockRandom // poison draws, shared by every session
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp(t testing.TB) *TestApp {
	return NewTestAppWithConfig(t, session.DefaultGameConfig())
}

// NewTestAppWithConfig is NewTestApp with custom game rules
func NewTestAppWithConfig(t testing.TB, gameCfg session.GameConfig) *TestApp {
	mockClock := quartz.NewMock(t)
	mockRandom := mocks.NewMockRandom()
	mockDraws := mocks.NewMockRandom()

	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = bcrypt.MinCost

	app := newWithDependencies(memory.New(), mockClock, mockRandom, mocks.NewMockSource(mockDraws), authCfg, gameCfg, testutil.NopLogger())
	t.Cleanup(func() { _ = app.Close() })

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MockDraws:  mockDraws,
	}
}
