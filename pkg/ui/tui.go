// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	"github.com/bud42069/Arbeit-Trage/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	prices        *components.PricesComponent
	opportunities *components.OpportunitiesComponent
	status        *components.StatusComponent
	stats         *components.StatsComponent
	keys          KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready      bool
	quitting   bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	logs       []string     // Recent log messages

	// Risk status, last known snapshot from the risk service.
	riskPaused      bool
	riskPauseReason string
	observeOnly     bool
	dailyPnL        float64

	// Startup state
	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time

	// Activity tracking
	activityFeed []string // Recent activity messages

	// Run counters.
	opportunityCount int64
	tradeCount       int64
	filledCount      int64
	latencySumMs     int64
	errorCount       int64
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		prices:        components.NewPricesComponent(),
		opportunities: components.NewOpportunitiesComponent(50),
		status:        components.NewStatusComponent(),
		stats:         components.NewStatsComponent(),
		keys:          DefaultKeyMap(),
		phase:         PhaseWelcome,
		welcomeStart:  now,
		logs:          make([]string, 0, 10),
		errors:        make([]ErrorEntry, 0, 3),
		activityFeed:  make([]string, 0, 8),
		observeOnly:   true,
		startupSteps: map[string]*StartupStep{
			"config": {Name: "Loading configuration", Status: "pending"},
			"risk":   {Name: "Starting risk service", Status: "pending"},
			"cex":    {Name: "Connecting to CEX", Status: "pending"},
			"dex":    {Name: "Starting DEX poller", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.phase = PhaseStartup
			m.startupTime = time.Now()
			if OnStartModules != nil {
				go OnStartModules()
			}
			return m, tickCmd()
		}
		switch msg.String() {
		case "c":
			m.opportunities.Clear()
			return m, nil
		case "up", "k":
			m.opportunities.ScrollUp()
			return m, nil
		case "down", "j":
			m.opportunities.ScrollDown()
			return m, nil
		case "e":
			m.errors = make([]ErrorEntry, 0, 3)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseStartup
			m.startupTime = time.Now()
			if OnStartModules != nil {
				go OnStartModules()
			}
		}
		return m, tickCmd()

	case OpportunityMsg:
		opp := msg.Opportunity
		m.opportunities.Add(components.OpportunityRow{
			Timestamp:          opp.DetectionTS.Format("15:04:05"),
			Asset:              opp.Asset,
			Direction:          opp.Direction.String(),
			Size:               opp.IntendedSize,
			GrossSpreadPct:     opp.GrossSpreadPct,
			PredictedNetPnLPct: opp.PredictedNetPnLPct,
			CEXPrice:           opp.CEXPrice,
			DEXPrice:           opp.DEXPrice,
			WindowID:           opp.WindowID,
		})
		m.opportunityCount++
		activity := fmt.Sprintf("opportunity %s %s net %s%%", opp.Asset, opp.Direction.String(), opp.PredictedNetPnLPct.StringFixed(3))
		m.activityFeed = addActivity(m.activityFeed, activity)
		m.lastUpdate = time.Now()

	case TradeMsg:
		t := msg.Trade
		m.tradeCount++
		if t.Status == executiondomain.StatusFilled || t.Status == executiondomain.StatusPartiallyFilled {
			m.filledCount++
		}
		m.latencySumMs += t.LatencyMs
		m.prices.SetLastTrade(components.TradeSummary{
			Asset:     t.Asset,
			Direction: t.Direction.String(),
			Status:    string(t.Status),
			PnLAbs:    pnlFloat(t.PnLAbs),
			PnLPct:    pnlFloat(t.PnLPct),
			LatencyMs: t.LatencyMs,
		})
		m.stats.Update(components.Stats{
			Opportunities: m.opportunityCount,
			Trades:        m.tradeCount,
			Filled:        m.filledCount,
			AvgLatencyMs:  avgLatency(m.latencySumMs, m.tradeCount),
			Errors:        m.errorCount,
		})
		activity := fmt.Sprintf("trade %s %s status=%s pnl=$%.2f", t.Asset, t.Direction.String(), t.Status, pnlFloat(t.PnLAbs))
		m.activityFeed = addActivity(m.activityFeed, activity)
		m.lastUpdate = time.Now()

	case BookUpdateMsg:
		book := msg.Book
		bid, _ := book.BestBid()
		ask, _ := book.BestAsk()
		m.updatePriceRow(book.Symbol, bid.Price, ask.Price, decimal.Decimal{}, false, true)
		m.lastUpdate = time.Now()

	case PoolUpdateMsg:
		pool := msg.Pool
		synthetic := pool.DataSource == "synthetic"
		m.updatePriceRow(pool.PoolID, decimal.Decimal{}, decimal.Decimal{}, pool.MidPrice, synthetic, false)
		m.lastUpdate = time.Now()

	case RiskMsg:
		s := msg.Status
		m.riskPaused = s.IsPaused
		m.riskPauseReason = s.PauseReason
		m.observeOnly = s.ObserveOnly
		m.dailyPnL = s.DailyPnL
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()

		stepKey := strings.ToLower(msg.Name)
		if step, ok := m.startupSteps[stepKey]; ok {
			if msg.Connected {
				step.Status = "connected"
			} else {
				step.Status = "connecting"
			}
		}
		if m.startupSteps["config"] != nil {
			m.startupSteps["config"].Status = "done"
		}
		if m.startupSteps["risk"] != nil {
			m.startupSteps["risk"].Status = "done"
		}
		allReady := true
		for _, step := range m.startupSteps {
			if step.Status != "connected" && step.Status != "done" {
				allReady = false
				break
			}
		}
		if allReady {
			m.startupComplete = true
		}

	case ErrorMsg:
		m.errorCount++
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		allDone := true
		for _, step := range m.startupSteps {
			if step.Status != "connected" && step.Status != "done" {
				allDone = false
				break
			}
		}
		if allDone {
			m.startupComplete = true
		}
	}

	return m, nil
}

func (m *Model) updatePriceRow(asset string, cexBid, cexAsk, dexMid decimal.Decimal, synthetic, isCEX bool) {
	rows := m.prices
	// Merge into whatever row already exists for this asset, since CEX and
	// DEX updates arrive independently and each only knows its own side.
	row := components.PriceRow{Asset: asset}
	if isCEX {
		row.CEXBid = cexBid
		row.CEXAsk = cexAsk
	} else {
		row.DEXMid = dexMid
		row.Synthetic = synthetic
	}
	if !cexAsk.IsZero() && !dexMid.IsZero() {
		row.SpreadBps = dexMid.Sub(cexAsk).Div(cexAsk).Mul(decimal.NewFromInt(10000))
	}
	rows.Upsert(row)
}

func pnlFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func avgLatency(sumMs, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(sumMs) / float64(count)
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if !m.startupComplete {
			return m.renderStartupScreen()
		}
		m.phase = PhaseDashboard
		fallthrough
	case PhaseDashboard:
	}

	var b strings.Builder

	title := TitleStyle.Render(" CEX-DEX Arbitrage Bot ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(MutedValue.Render(strings.TrimRight(m.status.View(), "\n")))
	b.WriteString("\n\n")

	if m.riskPaused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render(fmt.Sprintf("⏸ KILL-SWITCH ENGAGED: %s", m.riskPauseReason)))
		b.WriteString("\n\n")
	}

	leftCol := m.prices.View()

	var rightContent strings.Builder
	rightContent.WriteString(m.renderActivityFeed())
	rightContent.WriteString("\n\n")
	rightContent.WriteString(m.opportunities.View())
	rightCol := rightContent.String()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(m.width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(m.width - 4).Render(rightCol))
	}

	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.helpText()))

	return b.String()
}

// helpText joins the active keybindings into a single status-line hint.
func (m Model) helpText() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return strings.Join(parts, " • ")
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	tradeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(mutedStyle.Render("  Waiting for signals..."))
	} else {
		for _, activity := range m.activityFeed {
			if strings.Contains(activity, "trade ") {
				sb.WriteString(tradeStyle.Render("  " + activity))
			} else {
				sb.WriteString(mutedStyle.Render("  " + activity))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	greenStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))

	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗███████╗██╗  ██╗    ██████╗ ███████╗██╗  ██╗
   ██╔════╝██╔════╝╚██╗██╔╝    ██╔══██╗██╔════╝╚██╗██╔╝
   ██║     █████╗   ╚███╔╝ ────██║  ██║█████╗   ╚███╔╝
   ██║     ██╔══╝   ██╔██╗     ██║  ██║██╔══╝   ██╔██╗
   ╚██████╗███████╗██╔╝ ██╗    ██████╔╝███████╗██╔╝ ██╗
    ╚═════╝╚══════╝╚═╝  ╚═╝    ╚═════╝ ╚══════╝╚═╝  ╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")

	subtitle := "               A R B I T R A G E   B O T"
	sb.WriteString(mutedStyle.Render(subtitle))
	sb.WriteString("\n\n\n")

	tagline := "           cross-venue CEX/DEX spread detection"
	sb.WriteString(goldStyle.Render(tagline))
	sb.WriteString("\n\n\n")

	loading := fmt.Sprintf("                  Initializing%s", dots)
	sb.WriteString(greenStyle.Render(loading))
	sb.WriteString("\n\n")

	hint := "            Press any key to skip, or wait..."
	sb.WriteString(mutedStyle.Render(hint))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	connectingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  CEX-DEX Arbitrage Bot"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	stepOrder := []string{"config", "risk", "cex", "dex"}
	for _, key := range stepOrder {
		step, ok := m.startupSteps[key]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon = "✓"
			statusText = "Ready"
			style = successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon = spinners[idx]
			statusText = "Connecting..."
			style = connectingStyle
		case "failed":
			icon = "✗"
			statusText = "Failed"
			style = failedStyle
		default:
			icon = "○"
			statusText = "Pending"
			style = mutedStyle
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			mutedStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("  Waiting for the first market data snapshot..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.observeOnly {
		obsStyle := lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
		parts = append(parts, obsStyle.Render("OBSERVE-ONLY"))
	} else {
		liveStyle := lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
		parts = append(parts, liveStyle.Render("LIVE"))
	}

	pnlStyle := PositiveValue
	if m.dailyPnL < 0 {
		pnlStyle = NegativeValue
	}
	parts = append(parts, pnlStyle.Render(fmt.Sprintf("daily PnL: $%.2f", m.dailyPnL)))

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("updated %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// Set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
