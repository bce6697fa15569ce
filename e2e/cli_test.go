package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/poisonedglass/internal/api"
	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/factory"
	"github.com/mcoot/poisonedglass/internal/services/session"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func buildCLI(t *testing.T) string {
	t.Helper()

	projectRoot := findProjectRoot(t)
	binaryPath := filepath.Join(t.TempDir(), "pglass")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pglass")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))
	return binaryPath
}

// newCLIRunner returns a runner with its own token file, so each runner
// acts as a separate player
func newCLIRunner(t *testing.T, binaryPath, serverURL string) *cliRunner {
	t.Helper()
	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(), "PGLASS_TOKEN=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runJSON(t *testing.T, result any, args ...string) {
	t.Helper()
	output, err := r.run(args...)
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), result), "output: %s", output)
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// startTestServer runs the real application on a free port. Every glass is
// poisoned so rounds end on the first drink.
func startTestServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())

	app, err := factory.New(ctx, factory.Config{
		GameConfig: session.GameConfig{
			PoisonProbability: 1,
			Cooldown:          50 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = "127.0.0.1"
	serverConfig.Port = port
	server := api.NewServer(app.Handler(), serverConfig, app.Logger)
	server.OnShutdown(app.Registry.Close)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Run(ctx); err != nil {
			t.Logf("server error: %v", err)
		}
	}()
	go func() { _ = app.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = app.Close()
	})

	serverURL := "http://" + server.Addr()
	waitForServer(t, serverURL+"/api/v1/health")
	return serverURL
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

type messageResponse struct {
	Message string `json:"message"`
}

func register(t *testing.T, r *cliRunner, user string) response.AuthResponse {
	t.Helper()
	var resp response.AuthResponse
	r.runJSON(t, &resp, "player", "register", "--user", user, "--pass", "secret123", "--email", user+"@example.com")
	return resp
}

func TestCLI_HealthCheck(t *testing.T) {
	serverURL := startTestServer(t)
	cli := newCLIRunner(t, buildCLI(t), serverURL)

	var resp struct {
		Status string `json:"status"`
	}
	cli.runJSON(t, &resp, "health")
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_PlayerCommands(t *testing.T) {
	serverURL := startTestServer(t)
	cli := newCLIRunner(t, buildCLI(t), serverURL)

	authResp := register(t, cli, "alice")
	assert.Equal(t, "alice", authResp.Username)
	assert.NotEmpty(t, authResp.SessionToken)

	// Token should be saved in the token file
	var me response.Profile
	cli.runJSON(t, &me, "player", "me")
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)

	var msg messageResponse
	cli.runJSON(t, &msg, "player", "logout")
	assert.Equal(t, "Logged out", msg.Message)

	output, err := cli.run("player", "me")
	require.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")

	var login response.AuthResponse
	cli.runJSON(t, &login, "player", "login", "--user", "alice", "--pass", "secret123")
	require.NotNil(t, login.Profile)
	assert.Equal(t, "Just now.", login.Profile.LastSeen)
}

func TestCLI_PlayRound(t *testing.T) {
	serverURL := startTestServer(t)
	binary := buildCLI(t)
	alice := newCLIRunner(t, binary, serverURL)
	bob := newCLIRunner(t, binary, serverURL)
	register(t, alice, "alice")
	register(t, bob, "bob")

	var created wire.SessionData
	alice.runJSON(t, &created, "session", "create")
	require.Len(t, created.Code, 6)
	assert.Equal(t, "waiting", created.Stage)

	var joined response.JoinResponse
	alice.runJSON(t, &joined, "session", "join", created.Code, "--name", "Alice")
	assert.Equal(t, 0, joined.Slot)
	bob.runJSON(t, &joined, "session", "join", created.Code, "--name", "Bob")
	assert.Equal(t, 1, joined.Slot)
	assert.True(t, joined.Session.Ready)
	assert.Equal(t, "Alice", joined.Session.ActorName)

	// Out of turn: accepted and ignored
	var msg messageResponse
	bob.runJSON(t, &msg, "session", "act", created.Code, "drink")

	alice.runJSON(t, &msg, "session", "act", created.Code, "drink")
	assert.Equal(t, "Submitted self_drink", msg.Message)

	var view wire.SessionData
	require.Eventually(t, func() bool {
		output, err := alice.run("session", "show", created.Code)
		if err != nil || json.Unmarshal([]byte(output), &view) != nil {
			return false
		}
		return view.LastOutcome != nil && view.LastOutcome.Poisoned
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "api:alice", view.LastOutcome.Loser)
	assert.Equal(t, "api:bob", view.LastOutcome.Winner)

	// The recorder writes results in the background
	require.Eventually(t, func() bool {
		var list response.ProfileList
		output, err := alice.run("player", "list")
		if err != nil || json.Unmarshal([]byte(output), &list) != nil || len(list.Profiles) != 2 {
			return false
		}
		for _, p := range list.Profiles {
			if p.Username == "bob" {
				return p.Wins == 1
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	// After the cooldown the next round starts with the same order
	require.Eventually(t, func() bool {
		output, err := alice.run("session", "show", created.Code)
		if err != nil || json.Unmarshal([]byte(output), &view) != nil {
			return false
		}
		return view.Round == 2 && view.Stage == "in_progress"
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Alice", view.ActorName)

	bob.runJSON(t, &msg, "session", "leave", created.Code)
	alice.runJSON(t, &view, "session", "show", created.Code)
	assert.Equal(t, "waiting", view.Stage)
	assert.Len(t, view.Participants, 1)
}
