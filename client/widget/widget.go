// Package widget renderiza o indicador de cooldown e a pilha de toasts em HTML,
// com os atributos de acessibilidade e os data-testid usados pelos testes de UI.
package widget

import (
	"bytes"
	"html/template"
	"io"

	"concierge-gateway/client/cooldown"
	"concierge-gateway/client/toast"
)

var tmpl = template.Must(template.New("widget").Parse(`
{{- define "indicator" -}}
<div class="concierge" data-testid="concierge-indicator" data-state="{{.Kind}}">
  <button type="button" class="concierge-trigger" data-testid="concierge-trigger"{{if .Disabled}} disabled aria-disabled="true"{{end}}>{{.Label}}</button>
  {{- if .CoolingDown}}
  <div class="cooldown-progress" role="progressbar" data-testid="cooldown-progress" aria-label="Cooldown" aria-valuemin="0" aria-valuemax="100" aria-valuenow="{{.ValueNow}}">
    <div class="cooldown-progress-fill" style="width: {{.ValueNow}}%"></div>
  </div>
  <p class="cooldown-message" data-testid="cooldown-message" aria-live="polite">{{.Message}}</p>
  {{- end}}
</div>
{{- end -}}

{{- define "toasts" -}}
<div class="toast-stack" data-testid="toast-stack" aria-live="polite">
  {{- range .}}
  <div class="toast toast-{{.Kind}}" role="{{if eq .Kind "error"}}alert{{else}}status{{end}}" data-testid="toast" data-toast-id="{{.ID}}" data-kind="{{.Kind}}">
    <span class="toast-message">{{.Message}}</span>
    {{- if .Action}}
    <button type="button" class="toast-action" data-testid="toast-action">{{.Action.Label}}</button>
    {{- end}}
    <button type="button" class="toast-dismiss" data-testid="toast-dismiss" aria-label="Dismiss">&times;</button>
  </div>
  {{- end}}
</div>
{{- end -}}
`))

type indicatorView struct {
	Kind        string
	Label       string
	Disabled    bool
	CoolingDown bool
	ValueNow    int
	Message     string
}

// Label é o texto do gatilho.
const Label = "Ask the concierge"

// RenderIndicator escreve o botão do concierge e, durante o cooldown, a barra de progresso.
func RenderIndicator(w io.Writer, s cooldown.Snapshot) error {
	v := indicatorView{
		Kind:        s.State.Kind.String(),
		Label:       Label,
		Disabled:    s.Disabled(),
		CoolingDown: s.State.Kind == cooldown.KindCoolingDown,
		ValueNow:    s.State.ValueNow(),
	}
	if v.CoolingDown {
		v.Message = cooldown.CooldownMessage(s.State.RemainingSeconds())
	}
	return tmpl.ExecuteTemplate(w, "indicator", v)
}

// RenderToasts escreve a pilha de toasts, do mais antigo ao mais novo.
func RenderToasts(w io.Writer, ts []toast.Toast) error {
	return tmpl.ExecuteTemplate(w, "toasts", ts)
}

// Render junta indicador e toasts em um fragmento.
func Render(s cooldown.Snapshot, ts []toast.Toast) (string, error) {
	var buf bytes.Buffer
	if err := RenderIndicator(&buf, s); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	if err := RenderToasts(&buf, ts); err != nil {
		return "", err
	}
	return buf.String(), nil
}
