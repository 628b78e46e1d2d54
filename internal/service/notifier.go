package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	textTemplate "text/template"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

//go:embed templates/*.html
var templateFS embed.FS

// Mail identifies an email template / Identifie un modèle d'email
type Mail string

const (
	MailVerification     Mail = "verification"
	MailPasswordReset    Mail = "password_reset"
	MailProjectSubmitted Mail = "project_submitted"
	MailProjectModerated Mail = "project_moderated"
	MailOfferReceived    Mail = "offer_received"
	MailOfferAccepted    Mail = "offer_accepted"
	MailOfferRefused     Mail = "offer_refused"
	MailNewMessage       Mail = "new_message"
	MailDocumentReviewed Mail = "document_reviewed"
	MailDocumentExpired  Mail = "document_expired"
	MailContact          Mail = "contact"
)

// subjects are text templates rendered with the same data as the body / Sujets rendus avec les mêmes données
var subjects = map[Mail]string{
	MailVerification:     "Vérifiez votre adresse email",
	MailPasswordReset:    "Réinitialisation de votre mot de passe",
	MailProjectSubmitted: "Nouveau projet à modérer : {{.Title}}",
	MailProjectModerated: "Votre projet « {{.Title}} » a été {{if .Validated}}validé{{else}}refusé{{end}}",
	MailOfferReceived:    "Nouvelle offre sur « {{.Title}} »",
	MailOfferAccepted:    "Votre offre pour « {{.Title}} » a été acceptée",
	MailOfferRefused:     "Votre offre pour « {{.Title}} » n'a pas été retenue",
	MailNewMessage:       "Nouveau message de {{.Sender}}",
	MailDocumentReviewed: "Votre document {{.Type}} a été examiné",
	MailDocumentExpired:  "Votre document {{.Type}} a expiré",
	MailContact:          "[Contact] {{.Subject}}",
}

// MailData is the template payload / Données du modèle
type MailData map[string]any

// EmailMetricsRecorder records delivery outcomes / Enregistre le résultat des envois
type EmailMetricsRecorder interface {
	RecordEmail(template string, ok bool)
}

// Notifier renders templates and delivers emails in the background / Rend et envoie les emails en arrière-plan
type Notifier struct {
	sender      ports.EmailSender
	metrics     EmailMetricsRecorder
	bodies      *template.Template
	subjects    map[Mail]*textTemplate.Template
	frontendURL string
	timeout     time.Duration
	wg          sync.WaitGroup
}

// NewNotifier parses embedded templates / Analyse les modèles embarqués
func NewNotifier(sender ports.EmailSender, metrics EmailMetricsRecorder, frontendURL string) (*Notifier, error) {
	bodies, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	n := &Notifier{
		sender:      sender,
		metrics:     metrics,
		bodies:      bodies,
		subjects:    make(map[Mail]*textTemplate.Template, len(subjects)),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     30 * time.Second,
	}
	for mail, src := range subjects {
		if bodies.Lookup(string(mail)+".html") == nil {
			return nil, fmt.Errorf("missing email template %s.html", mail)
		}
		t, err := textTemplate.New(string(mail)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject of %s: %w", mail, err)
		}
		n.subjects[mail] = t
	}
	return n, nil
}

// Link builds an absolute frontend URL / Construit une URL absolue vers le frontend
func (n *Notifier) Link(path string) string {
	return n.frontendURL + "/" + strings.TrimLeft(path, "/")
}

// Render produces subject and HTML body / Produit le sujet et le corps HTML
func (n *Notifier) Render(mail Mail, data MailData) (string, string, error) {
	subjectTmpl, ok := n.subjects[mail]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", mail)
	}
	if data == nil {
		data = MailData{}
	}
	if _, ok := data["FrontendURL"]; !ok {
		data["FrontendURL"] = n.frontendURL
	}

	var subject, body bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", mail, err)
	}
	if err := n.bodies.ExecuteTemplate(&body, string(mail)+".html", data); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", mail, err)
	}
	return subject.String(), body.String(), nil
}

// Notify sends mail to recipients asynchronously / Envoie l'email de façon asynchrone
func (n *Notifier) Notify(mail Mail, to []string, data MailData) {
	n.send(mail, to, "", data)
}

// NotifyWithReplyTo is Notify with a Reply-To header / Notify avec un en-tête Reply-To
func (n *Notifier) NotifyWithReplyTo(mail Mail, to []string, replyTo string, data MailData) {
	n.send(mail, to, replyTo, data)
}

func (n *Notifier) send(mail Mail, to []string, replyTo string, data MailData) {
	if n == nil || len(to) == 0 {
		return
	}

	subject, body, err := n.Render(mail, data)
	if err != nil {
		slog.Error("failed to render email template", "template", mail, "err", err)
		n.record(mail, false)
		return
	}

	msg := ports.Email{To: to, ReplyTo: replyTo, Subject: subject, Body: body}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		// Bounded context prevents goroutine leaks / Contexte borné contre les fuites de goroutines
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		err := n.sender.Send(ctx, msg)
		switch {
		case err == nil:
			slog.Info("email sent", "template", mail, "recipients", len(to))
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			slog.Error("email send timed out", "template", mail, "timeout", n.timeout.String())
		default:
			slog.Error("failed to send email", "template", mail, "err", err)
		}
		n.record(mail, err == nil)
	}()
}

func (n *Notifier) record(mail Mail, ok bool) {
	if n.metrics != nil {
		n.metrics.RecordEmail(string(mail), ok)
	}
}

// Wait blocks until pending emails are handed off / Attend la fin des envois en cours
func (n *Notifier) Wait() {
	n.wg.Wait()
}
