package notifier

import (
	"strings"

	"github.com/esperanza/donation-gateway/internal/domain"
)

// Built-in templates, used whenever no active settings row overrides them.
// Placeholders are literal markers substituted by render; they are not a
// template language and never evaluate content from the datastore.
const (
	defaultAccountingSubject = "Nueva donación recibida — {{reference}}"
	defaultAccountingBody    = `<h2>Nueva donación</h2>
<table>
  <tr><td>Donante</td><td>{{donor_name}}</td></tr>
  <tr><td>Monto</td><td>{{currency_symbol}}{{amount}}</td></tr>
  <tr><td>Referencia</td><td>{{reference}}</td></tr>
  <tr><td>Transacción</td><td>{{transaction_id}}</td></tr>
  <tr><td>Tarjeta</td><td>{{card_info}}</td></tr>
  <tr><td>Fecha</td><td>{{date}}</td></tr>
</table>`

	defaultDonorSubject = "¡Gracias por tu donación, {{donor_name}}!"
	defaultDonorBody    = `<p>Hola {{donor_name}},</p>
<p>Recibimos tu donación de <b>{{currency_symbol}}{{amount}}</b> el {{date}}.</p>
<p>Tu número de referencia es <b>{{reference}}</b>. Guárdalo para cualquier consulta
o para solicitar tu recibo de donación.</p>
<p>Con gratitud,<br>Fundación Esperanza</p>`
)

var currencySymbols = map[string]string{
	"GTQ": "Q",
	"USD": "$",
	"EUR": "€",
	"MXN": "$",
}

func currencySymbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code + " "
}

// render substitutes the named placeholders for one notification.
func render(template string, n domain.DonationNotification) string {
	transactionID := "—"
	if n.TransactionID != nil && *n.TransactionID != "" {
		transactionID = *n.TransactionID
	}

	cardInfo := "—"
	if n.CardBrand != nil && n.CardLast4 != nil {
		cardInfo = *n.CardBrand + " ****" + *n.CardLast4
	}

	return strings.NewReplacer(
		"{{donor_name}}", n.DonorName,
		"{{amount}}", n.Amount,
		"{{currency_symbol}}", currencySymbol(n.Currency),
		"{{reference}}", n.Reference,
		"{{transaction_id}}", transactionID,
		"{{date}}", n.OccurredAt.Format("02/01/2006 15:04"),
		"{{card_info}}", cardInfo,
	).Replace(template)
}

// resolveTemplates applies settings overrides on top of the defaults.
func resolveTemplates(s *domain.NotificationSettings) (accSubject, accBody, donorSubject, donorBody string) {
	accSubject, accBody = defaultAccountingSubject, defaultAccountingBody
	donorSubject, donorBody = defaultDonorSubject, defaultDonorBody

	if s.AccountingSubject != nil && *s.AccountingSubject != "" {
		accSubject = *s.AccountingSubject
	}
	if s.AccountingBody != nil && *s.AccountingBody != "" {
		accBody = *s.AccountingBody
	}
	if s.DonorSubject != nil && *s.DonorSubject != "" {
		donorSubject = *s.DonorSubject
	}
	if s.DonorBody != nil && *s.DonorBody != "" {
		donorBody = *s.DonorBody
	}
	return
}
