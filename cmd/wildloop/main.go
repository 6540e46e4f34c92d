package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/msageha/wildloop/internal/daemon"
	"github.com/msageha/wildloop/internal/eventlog"
	"github.com/msageha/wildloop/internal/lock"
	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/selector"
	"github.com/msageha/wildloop/internal/setup"
	"github.com/msageha/wildloop/internal/status"
	"github.com/msageha/wildloop/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "select":
		runSelect(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "task":
		runTask(os.Args[2:])
	case "barrier":
		runBarrier(os.Args[2:])
	case "input":
		runInput(os.Args[2:])
	case "alert":
		runAlert(os.Args[2:])
	case "policy":
		runPolicy(os.Args[2:])
	case "version":
		fmt.Printf("wildloop %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	dir := "."
	name := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			name = args[i]
		default:
			dir = args[i]
		}
	}
	if err := setup.Run(dir, name); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(dir)
	fmt.Printf("Initialized %s/ in %s\n", setup.StateDirName, absDir)
}

func runDaemon(_ []string) {
	base := mustFindStateDir()
	cfg, err := setup.LoadConfig(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	d, err := daemon.New(base, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

// runSelect evaluates the work cascade against current state and prints the
// selection as JSON for the loop driver.
func runSelect(_ []string) {
	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	tasks, err := st.LoadTasks()
	if err != nil {
		fatalf("load tasks: %v", err)
	}
	barriers, err := st.LoadBarriers()
	if err != nil {
		fatalf("load barriers: %v", err)
	}
	inputs, err := st.LoadInputs()
	if err != nil {
		fatalf("load inputs: %v", err)
	}
	policy, err := st.LoadPolicy()
	if err != nil {
		fatalf("load policy: %v", err)
	}

	log, err := eventlog.Open(filepath.Join(base, "events", "alerts.jsonl"), 0)
	if err != nil {
		fatalf("open alert log: %v", err)
	}
	defer log.Close()
	alerts, err := log.LoadCurrent()
	if err != nil {
		fatalf("load alerts: %v", err)
	}

	sel := selector.SelectWork(tasks, alerts, barriers, inputs.Inputs, policy)
	out, _ := json.MarshalIndent(sel, "", "  ")
	fmt.Println(string(out))
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: wildloop status [--json]\n", a)
			os.Exit(1)
		}
	}

	base := mustFindStateDir()
	if err := status.Run(base, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runTask(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop task <add|list|set-status> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "add":
		runTaskAdd(args[1:])
	case "list":
		runTaskList(args[1:])
	case "set-status":
		runTaskSetStatus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown task subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: wildloop task <add|list|set-status> [options]")
		os.Exit(1)
	}
}

// runTaskSetStatus is how the driver marks progress on tasks it executes.
func runTaskSetStatus(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: wildloop task set-status <task_id> <todo|in_progress|complete>")
		os.Exit(1)
	}
	id := args[0]
	newStatus := model.TaskStatus(args[1])

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	tl, err := st.LoadTasks()
	if err != nil {
		fatalf("load tasks: %v", err)
	}
	task := tl.FindTask(id)
	if task == nil {
		fatalf("task not found: %s", id)
	}
	if err := model.ValidateTaskTransition(task.Status, newStatus); err != nil {
		fatalf("set task status: %v", err)
	}
	task.Status = newStatus
	if err := st.SaveTasks(tl); err != nil {
		fatalf("save tasks: %v", err)
	}
	fmt.Printf("%s -> %s\n", id, newStatus)
}

func runTaskAdd(args []string) {
	var description, blockedBy string
	var dependsOn []string
	priority := 10

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--description":
			i = requireValue(args, i, "--description")
			description = args[i]
		case "--priority":
			i = requireValue(args, i, "--priority")
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fatalf("invalid --priority value: %s", args[i])
			}
			priority = n
		case "--depends-on":
			i = requireValue(args, i, "--depends-on")
			dependsOn = append(dependsOn, args[i])
		case "--blocked-by":
			i = requireValue(args, i, "--blocked-by")
			blockedBy = args[i]
		default:
			fatalf("unknown flag: %s\nusage: wildloop task add --description <text> [--priority <n>] [--depends-on <task_id>]... [--blocked-by <barrier_id>]", args[i])
		}
	}
	if description == "" {
		fatalf("usage: wildloop task add --description <text> [--priority <n>] [--depends-on <task_id>]... [--blocked-by <barrier_id>]")
	}

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	tl, err := st.LoadTasks()
	if err != nil {
		fatalf("load tasks: %v", err)
	}

	id, err := model.GenerateID(model.IDTypeTask)
	if err != nil {
		fatalf("generate id: %v", err)
	}
	tl.Tasks = append(tl.Tasks, model.Task{
		ID:          id,
		Description: description,
		Priority:    priority,
		Status:      model.TaskStatusTodo,
		DependsOn:   dependsOn,
		BlockedBy:   blockedBy,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err := st.SaveTasks(tl); err != nil {
		fatalf("save tasks: %v", err)
	}
	fmt.Println(id)
}

func runTaskList(_ []string) {
	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	tl, err := st.LoadTasks()
	if err != nil {
		fatalf("load tasks: %v", err)
	}
	if len(tl.Tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, t := range tl.Flatten() {
		indent := ""
		if t.ParentID != "" {
			indent = "  "
		}
		fmt.Printf("%s%-12s p%-3d %s  %s\n", indent, t.Status, t.Priority, t.ID, t.Description)
	}
}

func runBarrier(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop barrier <list|set-status> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		runBarrierList(args[1:])
	case "set-status":
		runBarrierSetStatus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown barrier subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: wildloop barrier <list|set-status> [options]")
		os.Exit(1)
	}
}

func runBarrierList(_ []string) {
	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	bl, err := st.LoadBarriers()
	if err != nil {
		fatalf("load barriers: %v", err)
	}
	if len(bl.Barriers) == 0 {
		fmt.Println("no barriers")
		return
	}
	for _, b := range bl.Barriers {
		fmt.Printf("%-10s %-14s %s  %s\n", b.Status, b.Type, b.ID, b.Name)
		if b.LastCheckResult != "" {
			fmt.Printf("           last check: %s (%s)\n", b.LastCheckResult, b.LastCheckAt)
		}
	}
}

// runBarrierSetStatus is how webhook receivers and operators resolve the
// barrier types the monitor never polls.
func runBarrierSetStatus(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: wildloop barrier set-status <barrier_id> <waiting|satisfied|failed>")
		os.Exit(1)
	}
	id := args[0]
	newStatus := model.BarrierStatus(args[1])
	switch newStatus {
	case model.BarrierStatusWaiting, model.BarrierStatusSatisfied, model.BarrierStatusFailed:
	default:
		fatalf("invalid barrier status: %s", args[1])
	}

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	err := st.UpdateBarrier(id, func(b *model.Barrier) error {
		b.Status = newStatus
		if newStatus == model.BarrierStatusSatisfied {
			b.SatisfiedAt = time.Now().UTC().Format(time.RFC3339)
		}
		return nil
	})
	if err != nil {
		fatalf("set barrier status: %v", err)
	}
	fmt.Printf("%s -> %s\n", id, newStatus)
}

func runInput(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop input <add|list|mark-processed> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "add":
		runInputAdd(args[1:])
	case "list":
		runInputList(args[1:])
	case "mark-processed":
		runInputMarkProcessed(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown input subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: wildloop input <add|list|mark-processed> [options]")
		os.Exit(1)
	}
}

func runInputAdd(args []string) {
	var content, relatedAlertID string
	priority := model.InputPriorityNormal
	inputType := model.InputGeneralInstruction

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--content":
			i = requireValue(args, i, "--content")
			content = args[i]
		case "--priority":
			i = requireValue(args, i, "--priority")
			priority = model.InputPriority(args[i])
		case "--type":
			i = requireValue(args, i, "--type")
			inputType = model.InputType(args[i])
		case "--related-alert":
			i = requireValue(args, i, "--related-alert")
			relatedAlertID = args[i]
		default:
			fatalf("unknown flag: %s\nusage: wildloop input add --content <text> [--priority <urgent|normal|low>] [--type <type>] [--related-alert <alert_id>]", args[i])
		}
	}
	if content == "" {
		fatalf("usage: wildloop input add --content <text> [--priority <urgent|normal|low>] [--type <type>] [--related-alert <alert_id>]")
	}

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	iq, err := st.LoadInputs()
	if err != nil {
		fatalf("load inputs: %v", err)
	}

	id, err := model.GenerateID(model.IDTypeInput)
	if err != nil {
		fatalf("generate id: %v", err)
	}
	iq.Inputs = append(iq.Inputs, model.HumanInput{
		ID:             id,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Priority:       priority,
		Type:           inputType,
		Content:        content,
		Status:         model.InputStatusPending,
		RelatedAlertID: relatedAlertID,
	})
	if err := st.SaveInputs(iq); err != nil {
		fatalf("save inputs: %v", err)
	}
	fmt.Println(id)
}

func runInputList(_ []string) {
	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	iq, err := st.LoadInputs()
	if err != nil {
		fatalf("load inputs: %v", err)
	}
	if len(iq.Inputs) == 0 {
		fmt.Println("no inputs")
		return
	}
	for _, in := range iq.Inputs {
		fmt.Printf("%-10s %-7s %s  %s\n", in.Status, in.Priority, in.ID, in.Content)
	}
}

func runInputMarkProcessed(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop input mark-processed <input_id>")
		os.Exit(1)
	}
	id := args[0]

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	iq, err := st.LoadInputs()
	if err != nil {
		fatalf("load inputs: %v", err)
	}
	found := false
	for i := range iq.Inputs {
		if iq.Inputs[i].ID == id {
			iq.Inputs[i].Status = model.InputStatusProcessed
			iq.Inputs[i].ProcessedAt = time.Now().UTC().Format(time.RFC3339)
			found = true
			break
		}
	}
	if !found {
		fatalf("input not found: %s", id)
	}
	if err := st.SaveInputs(iq); err != nil {
		fatalf("save inputs: %v", err)
	}
	fmt.Printf("%s -> processed\n", id)
}

func runAlert(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop alert <append|resolve|list> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "append":
		runAlertAppend(args[1:])
	case "resolve":
		runAlertResolve(args[1:])
	case "list":
		runAlertList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown alert subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: wildloop alert <append|resolve|list> [options]")
		os.Exit(1)
	}
}

func runAlertAppend(args []string) {
	var source, alertType, description string
	severity := model.SeverityInfo

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--severity":
			i = requireValue(args, i, "--severity")
			severity = model.Severity(args[i])
		case "--source":
			i = requireValue(args, i, "--source")
			source = args[i]
		case "--type":
			i = requireValue(args, i, "--type")
			alertType = args[i]
		case "--description":
			i = requireValue(args, i, "--description")
			description = args[i]
		default:
			fatalf("unknown flag: %s\nusage: wildloop alert append --source <name> --type <type> --description <text> [--severity <critical|warning|info>]", args[i])
		}
	}
	if source == "" || alertType == "" || description == "" {
		fatalf("usage: wildloop alert append --source <name> --type <type> --description <text> [--severity <critical|warning|info>]")
	}

	base := mustFindStateDir()
	log := mustOpenAlertLog(base)
	defer log.Close()

	id, err := model.GenerateID(model.IDTypeAlert)
	if err != nil {
		fatalf("generate id: %v", err)
	}
	err = log.Append(model.Alert{
		ID:          id,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Severity:    severity,
		Source:      source,
		Type:        alertType,
		Description: description,
		Status:      model.AlertStatusPending,
	})
	if err != nil {
		fatalf("append alert: %v", err)
	}
	fmt.Println(id)
}

func runAlertResolve(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: wildloop alert resolve <alert_id>")
		os.Exit(1)
	}

	base := mustFindStateDir()
	log := mustOpenAlertLog(base)
	defer log.Close()

	if _, err := log.UpdateStatus(args[0], model.AlertStatusResolved, nil); err != nil {
		fatalf("resolve alert: %v", err)
	}
	fmt.Printf("%s -> resolved\n", args[0])
}

func runAlertList(args []string) {
	all := false
	for _, a := range args {
		switch a {
		case "--all":
			all = true
		default:
			fatalf("unknown flag: %s\nusage: wildloop alert list [--all]", a)
		}
	}

	base := mustFindStateDir()
	log := mustOpenAlertLog(base)
	defer log.Close()

	var alerts []model.Alert
	var err error
	if all {
		alerts, err = log.LoadAll()
	} else {
		alerts, err = log.LoadCurrent()
	}
	if err != nil {
		fatalf("load alerts: %v", err)
	}
	if len(alerts) == 0 {
		fmt.Println("no alerts")
		return
	}
	for _, a := range alerts {
		fmt.Printf("%-10s %-8s %s  %s: %s\n", a.Status, a.Severity, a.ID, a.Source, a.Description)
	}
}

func runPolicy(args []string) {
	if len(args) < 1 || args[0] != "show" {
		fmt.Fprintln(os.Stderr, "usage: wildloop policy show")
		os.Exit(1)
	}

	base := mustFindStateDir()
	st := store.New(base, lock.NewMutexMap())

	p, err := st.LoadPolicy()
	if err != nil {
		fatalf("load policy: %v", err)
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(out))
}

// requireValue advances past a flag that takes a value, exiting on a
// missing one.
func requireValue(args []string, i int, flag string) int {
	if i+1 >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", flag)
		os.Exit(1)
	}
	return i + 1
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func mustFindStateDir() string {
	base := findStateDir()
	if base == "" {
		fmt.Fprintf(os.Stderr, "error: %s/ directory not found. Run 'wildloop init <dir>' first.\n", setup.StateDirName)
		os.Exit(1)
	}
	return base
}

func mustOpenAlertLog(base string) *eventlog.Log {
	log, err := eventlog.Open(filepath.Join(base, "events", "alerts.jsonl"), 0)
	if err != nil {
		fatalf("open alert log: %v", err)
	}
	return log
}

// findStateDir searches for .wildloop/ in the current directory and ancestors.
func findStateDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, setup.StateDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `wildloop %s - autonomous loop decision core

Usage: wildloop <command> [options]

Project:
  init [dir] [--name <name>]   Initialize %s/ directory
  daemon                       Run barrier monitor daemon
  select                       Print next work selection as JSON
  status [--json]              Show project snapshot

State:
  task add [options]           Add a task
  task list                    List tasks
  task set-status <id> <s>     Move a task through its lifecycle
  barrier list                 List barriers
  barrier set-status <id> <s>  Resolve webhook/manual barriers
  input add [options]          Queue a human instruction
  input list                   List human inputs
  input mark-processed <id>    Mark an input consumed
  alert append [options]       Append an alert record
  alert resolve <id>           Resolve an alert
  alert list [--all]           List active (or all) alerts
  policy show                  Print the effective policy

Utilities:
  version                      Show version
  help                         Show this help

`, version, setup.StateDirName)
}
