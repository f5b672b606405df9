// Package notify delivers one-time codes out of band.
package notify

import (
	"context"
	"log"
)

// LogSender writes codes to the process log instead of sending mail. It is
// the development default; production deployments swap in a real mailer.
type LogSender struct{}

// SendOTPEmail logs the code issued for the address.
func (LogSender) SendOTPEmail(_ context.Context, email string, code string) error {
	log.Printf("one-time code for %s: %s", email, code)
	return nil
}
