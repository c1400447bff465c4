package subscription

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/abo-portal/internal/models"
)

func cycleLabel(c models.Cycle) string {
	if c == models.CycleYearly {
		return "jährlich"
	}
	return "monatlich"
}

func paymentLabel(p models.PaymentMethod) string {
	switch p {
	case models.PaymentBankTransfer:
		return "Überweisung"
	case models.PaymentCash:
		return "Barzahlung"
	}
	return string(p)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func planName(c Catalog, id string) string {
	if p, ok := c.Plan(id); ok && p.Name != "" {
		return p.Name
	}
	return id
}

// inquiry собирает письмо оператору о новой заявке или предварительной записи.
func inquiry(plan models.Plan, r models.Request) (subject, body string) {
	comingSoon := r.Status == models.StatusPreRegistration
	prefix, intro, startLabel := "Abo-Anfrage: ", "ich möchte ein Abo anfragen", "Start"
	if comingSoon {
		prefix, intro, startLabel = "Vormerkung: ", "ich möchte vorgemerkt werden", "Wunschtermin"
	}
	subject = fmt.Sprintf("%s%s (%s)", prefix, plan.Name, cycleLabel(r.Cycle))

	var b strings.Builder
	fmt.Fprintf(&b, "Hallo,\n\n%s:\n", intro)
	fmt.Fprintf(&b, "Plan: %s (%s)\n", plan.Name, cycleLabel(r.Cycle))
	fmt.Fprintf(&b, "Preis: %.2f EUR / Monat\n", r.Price)
	fmt.Fprintf(&b, "Name: %s\nE-Mail: %s\nTelefon: %s\n", r.Name, r.Email, orDash(r.Phone))
	fmt.Fprintf(&b, "Adresse: %s\nHinweise: %s\n", orDash(r.Address), orDash(r.Notes))
	fmt.Fprintf(&b, "Zahlung: %s\n", paymentLabel(r.Payment))
	fmt.Fprintf(&b, "%s: %s\n\nAbo-ID: %s\n", startLabel, r.StartDate.Format("2006-01-02"), r.ID)
	return subject, b.String()
}

// statusNotice возвращает письмо клиенту о смене статуса. ok=false — писать не нужно.
func statusNotice(name string, r models.Request, from models.Status) (subject, body string, ok bool) {
	greeting := fmt.Sprintf("Hallo %s,\n\n", r.Name)
	switch r.Status {
	case models.StatusActive:
		if from == models.StatusPaused {
			return "Abo fortgesetzt: " + name,
				greeting + fmt.Sprintf("dein Abo ist wieder aktiv. Nächste Abbuchung: %s.", r.NextBilling.Format("02.01.2006")),
				true
		}
		body := greeting + fmt.Sprintf("dein Abo ist aktiv. Nächste Abbuchung: %s.\n\n", r.NextBilling.Format("02.01.2006"))
		if r.Payment == models.PaymentBankTransfer {
			body += "Bitte richte einen Dauerauftrag ein und lade einen Nachweis (z. B. Screenshot) in deinem Konto hoch. " +
				"Die Zugangsdaten werden nach der Prüfung freigeschaltet."
		} else {
			body += "Die Zugangsdaten findest du ab sofort in deinem Konto."
		}
		return "Abo bestätigt: " + name, body, true
	case models.StatusRejected:
		return "Abo-Anfrage abgelehnt: " + name,
			greeting + "deine Anfrage konnte leider nicht angenommen werden.",
			true
	case models.StatusPaused:
		return "Abo pausiert: " + name,
			greeting + "dein Abo wurde pausiert.",
			true
	case models.StatusCancelled:
		return "Abo gekündigt: " + name,
			greeting + "dein Abo wurde gekündigt.",
			true
	}
	return "", "", false
}
