package mailer

import "html/template"

type confirmationView struct {
	OrganizationName string
	PlanName         string
	Amount           string
	DashboardURL     string
}

var confirmationTmpl = template.Must(template.New("payment_confirmation").Parse(`<!DOCTYPE html>
<html lang="es">
  <body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 40px;">
    <div style="max-width: 520px; margin: auto; background: #ffffff; padding: 32px; border-radius: 12px; border: 1px solid #e5e7eb;">
      <h2 style="color: #163F6A; margin-top: 0;">¡Tu pago se registró correctamente!</h2>
      <p>Te confirmamos que el pago para <strong>{{.OrganizationName}}</strong> fue procesado con éxito.</p>
      {{- if or .PlanName .Amount}}
      <p>
        {{- if .PlanName}}Plan contratado: <strong>{{.PlanName}}</strong><br />{{end}}
        {{- if .Amount}}Monto: <strong>{{.Amount}}</strong>{{end}}
      </p>
      {{- end}}
      <p style="text-align: center; margin: 32px 0;">
        <a href="{{.DashboardURL}}" style="background-color: #619F44; color: white; padding: 14px 22px; border-radius: 8px; text-decoration: none;">Ir a mi panel</a>
      </p>
    </div>
  </body>
</html>
`))
