package browser_test

import (
	"context"
	"os"
	"testing"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/nbenliogludev/go-region-ai-agent/internal/agent"
	"github.com/nbenliogludev/go-region-ai-agent/internal/browser"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const formPage = `data:text/html,<html><body style="margin:0">` +
	`<input id="name" style="position:absolute;left:0;top:0;width:400px;height:100px;font-size:40px">` +
	`</body></html>`

type formBackend struct{ calls int }

func (b *formBackend) Name() string { return "form" }

func (b *formBackend) NextActions(context.Context, llm.Request) ([]action.Action, error) {
	b.calls++
	if b.calls == 1 {
		return []action.Action{action.Click(0.5, 0.5), action.Write("Margherita"), action.Press("enter")}, nil
	}
	return []action.Action{action.Done("typed the order")}, nil
}

func e2eConfig(t *testing.T) (config.DeviceConfig, config.AgentConfig) {
	t.Helper()
	if testing.Short() || os.Getenv("REGION_AGENT_BROWSER_E2E") == "" {
		t.Skip("set REGION_AGENT_BROWSER_E2E=1 to run browser e2e tests")
	}
	cfg := config.NewDefaultConfig()
	dev := cfg.Device()
	dev.Headless = true
	dev.Width, dev.Height = 800, 600
	dev.StartURL = formPage

	agentCfg := cfg.Agent()
	agentCfg.ScreenshotsDir = t.TempDir()
	return dev, agentCfg
}

func runForm(t *testing.T, device agent.Device, overlay agent.Overlay, agentCfg config.AgentConfig) {
	t.Helper()
	s := agent.NewSession(device, agentCfg, zaptest.NewLogger(t), agent.WithOverlay(overlay))
	require.NoError(t, s.SelectRegion(screen.Region{X: 0, Y: 0, Width: 400, Height: 100}))

	require.NoError(t, s.Start(context.Background(), "type Margherita into the field", &formBackend{}))
	assert.Equal(t, agent.StateCompleted, s.Wait())
	require.NoError(t, s.Close())
}

func TestPlaywrightFormE2E(t *testing.T) {
	devCfg, agentCfg := e2eConfig(t)

	m, err := browser.NewManager(devCfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	runForm(t, m, m, agentCfg)

	value, err := m.Page.InputValue("#name")
	require.NoError(t, err)
	assert.Equal(t, "Margherita", value)
}

func TestChromeTabFormE2E(t *testing.T) {
	devCfg, agentCfg := e2eConfig(t)
	devCfg.RemoteURL = os.Getenv("CHROME_REMOTE_URL")

	tab, err := browser.NewTab(context.Background(), devCfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tab.Close()

	runForm(t, tab, tab, agentCfg)

	w, h, err := tab.ScreenSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}
