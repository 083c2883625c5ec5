package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/arenakit/competition-system/config"
	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
)

const notifyTimeout = 15 * time.Second

var reportedTmpl = template.Must(template.New("match_reported").Parse(`
<p>Your opponent reported a result for your match on {{.MatchDate}}: they {{.Claim}}.</p>
<p>If you agree, confirm it here: <a href="{{.ConfirmLink}}">{{.ConfirmLink}}</a></p>
<p>If the result is wrong, open the match page and dispute it instead.</p>
`))

var disputedTmpl = template.Must(template.New("match_disputed").Parse(`
<p>The result you reported for match #{{.MatchID}} was disputed by your opponent.</p>
<p>An administrator will review the match and reset it if necessary.</p>
`))

var completedTmpl = template.Must(template.New("tournament_completed").Parse(`
<p>Tournament "{{.Name}}" has finished. Champion: competitor #{{.Champion}}.</p>
`))

// EmailService sends notification mail over SMTP. Every public method
// returns immediately; delivery happens on its own goroutine and
// failures are only logged.
type EmailService struct {
	cfg         *config.Config
	competitors repositories.CompetitorRepository
	logger      *slog.Logger
}

func NewEmailService(cfg *config.Config, competitors repositories.CompetitorRepository, logger *slog.Logger) *EmailService {
	return &EmailService{cfg: cfg, competitors: competitors, logger: logger}
}

func (s *EmailService) MatchReported(match *models.Match, opponent models.MatchSide, confirmURL string) {
	matchID := match.ID
	recipient := *match.SideRef(opponent)
	claim := match.SideRef(opponent.Opposite()).Result
	matchDate := match.MatchDate

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		to, err := s.competitors.GetContactEmail(ctx, recipient.CompetitorID, recipient.CompetitorType)
		if err != nil {
			s.logger.Warn("notification skipped, no contact email",
				slog.Int("match_id", matchID), slog.Any("error", err))
			return
		}

		body, err := renderTemplate(reportedTmpl, struct {
			MatchDate   string
			Claim       string
			ConfirmLink string
		}{
			MatchDate:   matchDate.Format("January 2, 2006"),
			Claim:       string(claim),
			ConfirmLink: confirmURL,
		})
		if err != nil {
			s.logger.Error("failed to render report notification", slog.Any("error", err))
			return
		}

		if err := s.send([]string{to}, "Match result awaiting your confirmation", body); err != nil {
			s.logger.Warn("failed to send report notification",
				slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}()
}

func (s *EmailService) MatchDisputed(match *models.Match, reporter models.MatchSide) {
	matchID := match.ID
	recipient := *match.SideRef(reporter)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		body, err := renderTemplate(disputedTmpl, struct{ MatchID int }{MatchID: matchID})
		if err != nil {
			s.logger.Error("failed to render dispute notification", slog.Any("error", err))
			return
		}

		recipients := make([]string, 0, 2)
		if to, err := s.competitors.GetContactEmail(ctx, recipient.CompetitorID, recipient.CompetitorType); err == nil {
			recipients = append(recipients, to)
		}
		if s.cfg.AdminEmail != "" {
			recipients = append(recipients, s.cfg.AdminEmail)
		}

		for _, to := range recipients {
			if err := s.send([]string{to}, fmt.Sprintf("Match #%d result disputed", matchID), body); err != nil {
				s.logger.Warn("failed to send dispute notification",
					slog.Int("match_id", matchID), slog.String("to", to), slog.Any("error", err))
			}
		}
	}()
}

func (s *EmailService) TournamentCompleted(tournament *models.Tournament, champion models.CompetitorRef) {
	name := tournament.Name

	go func() {
		if s.cfg.AdminEmail == "" {
			return
		}
		body, err := renderTemplate(completedTmpl, struct {
			Name     string
			Champion models.CompetitorRef
		}{Name: name, Champion: champion})
		if err != nil {
			s.logger.Error("failed to render completion notification", slog.Any("error", err))
			return
		}
		if err := s.send([]string{s.cfg.AdminEmail}, fmt.Sprintf("Tournament finished: %s", name), body); err != nil {
			s.logger.Warn("failed to send completion notification",
				slog.String("tournament", name), slog.Any("error", err))
		}
	}()
}

func (s *EmailService) send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt to: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return nil
}

func renderTemplate(t *template.Template, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t.Name(), err)
	}
	return body.String(), nil
}
