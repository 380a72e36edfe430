package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/webhook"
)

// newChatServer is a minimal conversational front end over the same
// engine.Engine the dashboard and webhook use: pick a known workflow by
// name, submit its inputs as JSON, get its outputs back. It is not its
// own module in the design (spec.md lists the HTML/template layer as an
// external concern broadly, and chat specifically is only ever named as
// one of C17's three supervised children, not a component with its own
// contract) so it stays a single small stdlib net/http handler rather
// than a second echo service.
func newChatServer(eng *engine.Engine, lookup webhook.Lookup, logger *obslog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatPageHTML)
	})

	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		workflowName := r.FormValue("workflow")
		wf, ok := lookup(workflowName)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown workflow %q", workflowName), http.StatusNotFound)
			return
		}

		var inputs map[string]any
		if raw := r.FormValue("inputs"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				http.Error(w, fmt.Sprintf("invalid inputs JSON: %v", err), http.StatusBadRequest)
				return
			}
		}

		record, err := eng.Execute(r.Context(), wf.Declaration, wf.Builder, inputs, engine.Options{})
		if err != nil {
			logger.Error("chat run failed", "workflow", workflowName, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record.Outputs)
	})

	return mux
}

const chatPageHTML = `<!DOCTYPE html>
<html>
<head><title>agentflow chat</title></head>
<body>
<h1>agentflow chat</h1>
<form method="post" action="/chat">
  <label>Workflow <input name="workflow"></label><br>
  <label>Inputs (JSON) <textarea name="inputs">{}</textarea></label><br>
  <button type="submit">Send</button>
</form>
</body>
</html>`
