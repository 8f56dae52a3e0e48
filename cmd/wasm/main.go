//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/kittclouds/devdiary/internal/ai"
	"github.com/kittclouds/devdiary/internal/config"
	"github.com/kittclouds/devdiary/internal/logger"
	"github.com/kittclouds/devdiary/internal/store"
	"github.com/kittclouds/devdiary/pkg/persist"
	"github.com/kittclouds/devdiary/pkg/recall"
)

// Version info
const Version = "0.1.0"

// defaultDB is the IndexedDB database holding the data file.
const defaultDB = "devdiary"

// Global state
var (
	log    *logger.Logger
	diary  *store.Store
	action *ai.Action
)

func main() {
	var err error
	log, err = logger.New(logger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("wasm")

	client, err := ai.NewGeminiClient(ai.DefaultGeminiOptions())
	if err != nil {
		println("[DevDiary] FATAL: Failed to create AI client:", err.Error())
	} else {
		action = ai.NewAction(ai.NewNoteGenerator(client, ai.WithGeneratorLogger(log)))
	}

	println("[DevDiary] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("DevDiary", js.ValueOf(map[string]interface{}{
		"version":  js.FuncOf(getVersion),
		"open":     js.FuncOf(open),
		"close":    js.FuncOf(closeStore),
		"getData":  js.FuncOf(getData),
		"onChange": js.FuncOf(onChange),
		// Projects
		"addProject":    js.FuncOf(addProject),
		"updateProject": js.FuncOf(updateProject),
		"deleteProject": js.FuncOf(deleteProject),
		"getProject":    js.FuncOf(getProject),
		// Tasks
		"addTask":           js.FuncOf(addTask),
		"updateTask":        js.FuncOf(updateTask),
		"setTaskDone":       js.FuncOf(setTaskDone),
		"deleteTask":        js.FuncOf(deleteTask),
		"getTasksByProject": js.FuncOf(getTasksByProject),
		"getTodaysTasks":    js.FuncOf(getTodaysTasks),
		// Notes
		"addNote":           js.FuncOf(addNote),
		"updateNote":        js.FuncOf(updateNote),
		"deleteNote":        js.FuncOf(deleteNote),
		"getNotesByProject": js.FuncOf(getNotesByProject),
		// Settings and backup
		"setApiKey":  js.FuncOf(setAPIKey),
		"getApiKey":  js.FuncOf(getAPIKey),
		"exportData": js.FuncOf(exportData),
		"importData": js.FuncOf(importData),
		// AI
		"generateNote": js.FuncOf(generateNote),
	}))

	select {}
}

// getVersion returns the module version
func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// open loads the data from IndexedDB and joins the cross-tab channel.
// Args: [dbName string (optional)]
func open(this js.Value, args []js.Value) interface{} {
	if diary != nil {
		return successResult("already open")
	}

	name := defaultDB
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		name = args[0].String()
	}

	ctx := context.Background()
	fs, err := indexeddb.NewFS(ctx, name, indexeddb.Options{})
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}
	backend, err := persist.NewFSBackend(fs, "data")
	if err != nil {
		return errorResult(err.Error())
	}

	// Without BroadcastChannel the tab still works, it just won't see
	// writes from other tabs until reload.
	var bus persist.Bus = persist.NopBus{}
	if bb, err := persist.NewBroadcastBus(name); err == nil {
		bus = bb
	} else {
		log.Warnw("Cross-tab sync disabled", "error", err)
	}

	value := persist.Load(ctx, config.DefaultStorageKey, store.DefaultAppData(),
		persist.WithBackend(backend),
		persist.WithBus(bus),
		persist.WithLogger(log),
	)
	diary = store.New(value, store.WithLogger(log), store.WithClosers(bus, backend))
	return successResult("opened " + name)
}

func closeStore(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return successResult("not open")
	}
	err := diary.Close()
	diary = nil
	if err != nil {
		return errorResult(err.Error())
	}
	return successResult("closed")
}

func getData(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	return valueResult(diary.Data())
}

// onChange: [callback function(dataJSON string)]
// Returns an unsubscribe function.
func onChange(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return errorResult("onChange requires a callback")
	}
	callback := args[0]

	cancel := diary.OnChange(func(d store.AppData) {
		callback.Invoke(valueResult(d))
	})

	var unsubscribe js.Func
	unsubscribe = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		cancel()
		unsubscribe.Release()
		return nil
	})
	return unsubscribe
}

// addProject: [title string]
func addProject(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: title")
	}
	p, err := diary.AddProject(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return valueResult(p)
}

// updateProject: [projectJSON string]
func updateProject(this js.Value, args []js.Value) interface{} {
	var p store.Project
	if res := decodeArg(args, &p); res != nil {
		return res
	}
	if err := diary.UpdateProject(p); err != nil {
		return errorResult(err.Error())
	}
	return successResult("updated")
}

// deleteProject: [id string]
func deleteProject(this js.Value, args []js.Value) interface{} {
	return deleteResult(args, func(id string) bool { return diary.DeleteProject(id) })
}

// getProject: [id string]
func getProject(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: id")
	}
	p, ok := diary.GetProjectByID(args[0].String())
	if !ok {
		return "null"
	}
	return valueResult(p)
}

// addTask: [newTaskJSON string]
func addTask(this js.Value, args []js.Value) interface{} {
	var in store.NewTask
	if res := decodeArg(args, &in); res != nil {
		return res
	}
	t, err := diary.AddTask(in)
	if err != nil {
		return errorResult(err.Error())
	}
	return valueResult(t)
}

// updateTask: [taskJSON string]
func updateTask(this js.Value, args []js.Value) interface{} {
	var t store.Task
	if res := decodeArg(args, &t); res != nil {
		return res
	}
	if err := diary.UpdateTask(t); err != nil {
		return errorResult(err.Error())
	}
	return successResult("updated")
}

// setTaskDone: [id string, done bool]
func setTaskDone(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 2 {
		return errorResult("requires 2 args: id, done")
	}
	if !diary.SetTaskDone(args[0].String(), args[1].Truthy()) {
		return errorResult("task not found")
	}
	return successResult("updated")
}

// deleteTask: [id string]
func deleteTask(this js.Value, args []js.Value) interface{} {
	return deleteResult(args, func(id string) bool { return diary.DeleteTask(id) })
}

// getTasksByProject: [projectId string]
func getTasksByProject(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: projectId")
	}
	return valueResult(diary.GetTasksByProjectID(args[0].String()))
}

func getTodaysTasks(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	return valueResult(diary.GetTodaysTasks())
}

// addNote: [newNoteJSON string]
func addNote(this js.Value, args []js.Value) interface{} {
	var in store.NewNote
	if res := decodeArg(args, &in); res != nil {
		return res
	}
	n, err := diary.AddNote(in)
	if err != nil {
		return errorResult(err.Error())
	}
	return valueResult(n)
}

// updateNote: [noteJSON string]
func updateNote(this js.Value, args []js.Value) interface{} {
	var n store.Note
	if res := decodeArg(args, &n); res != nil {
		return res
	}
	if err := diary.UpdateNote(n); err != nil {
		return errorResult(err.Error())
	}
	return successResult("updated")
}

// deleteNote: [id string]
func deleteNote(this js.Value, args []js.Value) interface{} {
	return deleteResult(args, func(id string) bool { return diary.DeleteNote(id) })
}

// getNotesByProject: [projectId string]
func getNotesByProject(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: projectId")
	}
	return valueResult(diary.GetNotesByProjectID(args[0].String()))
}

// setApiKey: [key string]
func setAPIKey(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: key")
	}
	diary.SetAPIKey(args[0].String())
	return successResult("saved")
}

func getAPIKey(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	return diary.APIKey()
}

// exportData returns the backup document and its suggested file name.
func exportData(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	data, err := diary.Export()
	if err != nil {
		return errorResult(err.Error())
	}
	return valueResult(map[string]string{
		"fileName": store.BackupFileName(time.Now()),
		"content":  string(data),
	})
}

// importData: [backupJSON string]
func importData(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: backupJSON")
	}
	if err := diary.ImportData([]byte(args[0].String())); err != nil {
		return errorResult(err.Error())
	}
	return successResult("imported")
}

// generateNote: [projectId string, prompt string, excludeNoteId string (optional), contextLimit int (optional)]
// Returns a Promise resolving to the generated note JSON. Failures resolve
// to {"title":"Error","content":...}; bad input resolves to an error result.
func generateNote(this js.Value, args []js.Value) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if action == nil {
		return errorResult("AI client not available")
	}
	if len(args) < 2 {
		return errorResult("requires 2+ args: projectId, prompt, [excludeNoteId], [contextLimit]")
	}

	projectID := args[0].String()
	prompt := args[1].String()
	exclude := ""
	if len(args) > 2 && args[2].Type() == js.TypeString {
		exclude = args[2].String()
	}
	limit := 0
	if len(args) > 3 && args[3].Type() == js.TypeNumber {
		limit = args[3].Int()
	}

	contextNotes := ai.ContextNotes(diary.GetNotesByProjectID(projectID), exclude)
	contextNotes = recall.Select(prompt, contextNotes, limit)
	req := ai.NoteRequest{Prompt: prompt, ContextNotes: contextNotes, Credential: diary.APIKey()}

	return promise(func() interface{} {
		note, err := action.Run(context.Background(), req)
		if err != nil {
			return errorResult(err.Error())
		}
		return valueResult(note)
	})
}

// promise runs fn off the event loop, since the fetch behind generation
// cannot complete while a callback blocks.
func promise(fn func() interface{}) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve := args[0]
		go func() {
			defer handler.Release()
			resolve.Invoke(fn())
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

// decodeArg unmarshals the first argument into v. A non-nil return is the
// error result to hand back.
func decodeArg(args []js.Value, v any) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: JSON object")
	}
	if err := json.Unmarshal([]byte(args[0].String()), v); err != nil {
		return errorResult("invalid json: " + err.Error())
	}
	return nil
}

func deleteResult(args []js.Value, del func(id string) bool) interface{} {
	if diary == nil {
		return errorResult("store not open")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: id")
	}
	if !del(args[0].String()) {
		return errorResult("not found")
	}
	return successResult("deleted")
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Marshal a value result
func valueResult(v any) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}
