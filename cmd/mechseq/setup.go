package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/mechseq/pkg/actuator"
	"github.com/gwillem/mechseq/pkg/rig"
	"github.com/gwillem/mechseq/pkg/servo"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	MaxID int `long:"max-id" default:"12" description:"Highest servo ID to scan for"`
}

// busInfo is a serial port that answered a servo scan.
type busInfo struct {
	port   string
	servos []feetech.FoundServo
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("mechseq Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := loadConfig()

	// Step 1: find the servo bus
	fmt.Println("Scanning serial ports for servos...")
	fmt.Println()
	buses := findBuses(c.MaxID)
	if len(buses) == 0 {
		fmt.Println("No servo bus found.")
		fmt.Println("Make sure the controller is connected and powered on.")
		os.Exit(1)
	}
	bus := chooseBus(buses)

	// Step 2: map servos to parts
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Assign Servos ━━━"))
	fmt.Println()
	parts := rigParts(cfg)
	assigned := assignServos(bus, parts)
	if len(assigned) == 0 {
		fmt.Println("No servos assigned.")
		os.Exit(1)
	}

	// Step 3: record ranges of motion
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating ━━━"))
	fmt.Println()
	cal, err := calibrate(bus.port, assigned)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calibrating: %v\n", err)
		os.Exit(1)
	}

	cfg.Servo = rig.ServoConfig{Port: bus.port, Calibration: cal}
	for id := range cal {
		if parts[id] == actuator.Lock {
			cfg.Servo.Latches = append(cfg.Servo.Latches, id)
		}
	}
	sort.Strings(cfg.Servo.Latches)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start with: " + headerStyle.Render("mechseq legs") + " or " + headerStyle.Render("mechseq turret"))

	return nil
}

// rigParts returns the kind of every part the legs and the turret use.
func rigParts(cfg *rig.Config) map[string]actuator.Kind {
	parts := make(map[string]actuator.Kind)
	for _, p := range cfg.Legs.Parts {
		parts[p.ID] = p.Kind
	}
	parts[cfg.Turret.Pitch] = actuator.Rotary
	parts[cfg.Turret.Yaw] = actuator.Rotary
	for _, id := range cfg.Turret.Extenders {
		parts[id] = actuator.Rotary
	}
	return parts
}

func findBuses(maxID int) []busInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var buses []busInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, servos, err := connectToBus(port, maxID)
		if err != nil {
			continue
		}
		bus.Close()

		if len(servos) > 0 {
			fmt.Printf("  Found %d servo(s) on %s\n", len(servos), port)
			buses = append(buses, busInfo{port: port, servos: servos})
		}
	}
	return buses
}

func connectToBus(port string, maxID int) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, maxID)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return bus, servos, nil
}

func chooseBus(buses []busInfo) busInfo {
	if len(buses) == 1 {
		return buses[0]
	}

	options := make([]huh.Option[int], 0, len(buses))
	for i, b := range buses {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%d servos)", b.port, len(b.servos)), i))
	}

	var choice int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which bus drives the rig?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return buses[choice]
}

// assignServos asks which part each servo drives. It returns servo IDs by part.
func assignServos(bus busInfo, parts map[string]actuator.Kind) map[string]int {
	names := make([]string, 0, len(parts))
	for id := range parts {
		names = append(names, id)
	}
	sort.Strings(names)

	choices := make([]string, len(bus.servos))
	fields := make([]huh.Field, 0, len(bus.servos))
	for i, s := range bus.servos {
		options := []huh.Option[string]{huh.NewOption("(unused)", "")}
		for _, id := range names {
			options = append(options, huh.NewOption(fmt.Sprintf("%s [%s]", id, parts[id]), id))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(fmt.Sprintf("Servo %d (model %v)", s.ID, s.Model)).
			Options(options...).
			Value(&choices[i]))
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	assigned := make(map[string]int)
	for i, id := range choices {
		if id == "" {
			continue
		}
		if prev, ok := assigned[id]; ok {
			fmt.Printf("  %s already on servo %d, ignoring servo %d\n", id, prev, bus.servos[i].ID)
			continue
		}
		assigned[id] = bus.servos[i].ID
	}
	return assigned
}

func calibrate(port string, assigned map[string]int) (servo.Calibration, error) {
	bus, servos, err := connectToBus(port, maxServoID(assigned))
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Disable all servos so the rig can be moved by hand
	ctx := context.Background()
	for _, s := range servoMap {
		s.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each part to its minimum AND maximum positions.")
	fmt.Println()

	ids := make([]string, 0, len(assigned))
	for id := range assigned {
		if _, ok := servoMap[assigned[id]]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	model := newCalibrationModel(ids, assigned, servoMap)
	for _, id := range ids {
		pos, _ := servoMap[assigned[id]].Position(ctx)
		model.cur[id], model.min[id], model.max[id] = pos, pos, pos
	}

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}
	cm := final.(calibrationModel)

	cal := make(servo.Calibration, len(ids))
	for _, id := range ids {
		cal[id] = servo.MotorCalibration{
			ID:       assigned[id],
			RangeMin: cm.min[id],
			RangeMax: cm.max[id],
		}
	}
	return cal, nil
}

func maxServoID(assigned map[string]int) int {
	m := 1
	for _, id := range assigned {
		m = max(m, id)
	}
	return m
}

// Calibration TUI model
type calibrationModel struct {
	ids      []string
	assigned map[string]int
	servoMap map[int]*feetech.Servo
	cur      map[string]int
	min      map[string]int
	max      map[string]int
	quitting bool
}

type tickMsg time.Time

func newCalibrationModel(ids []string, assigned map[string]int, servoMap map[int]*feetech.Servo) calibrationModel {
	return calibrationModel{
		ids:      ids,
		assigned: assigned,
		servoMap: servoMap,
		cur:      make(map[string]int),
		min:      make(map[string]int),
		max:      make(map[string]int),
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for _, id := range m.ids {
			pos, err := m.servoMap[m.assigned[id]].Position(ctx)
			if err != nil {
				continue
			}
			m.cur[id] = pos
			m.min[id] = min(m.min[id], pos)
			m.max[id] = max(m.max[id], pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tablePartStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.ids))
	ranges := make([]int, 0, len(m.ids))
	for _, id := range m.ids {
		size := m.max[id] - m.min[id]
		ranges = append(ranges, size)
		rows = append(rows, []string{
			id,
			fmt.Sprintf("%d", m.assigned[id]),
			fmt.Sprintf("%d", m.cur[id]),
			fmt.Sprintf("%d", m.min[id]),
			fmt.Sprintf("%d", m.max[id]),
			fmt.Sprintf("%d", size),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Part", "Servo", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tablePartStyle
			case 2:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done")
}
