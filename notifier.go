package identity

import "context"

// LogNotifier writes deliveries to the logger instead of sending them.
// Useful for development and as the default when no mailer is wired in.
type LogNotifier struct {
	Logger Logger
}

// NewLogNotifier builds a LogNotifier, defaulting the logger when nil.
func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SendTwoFactorCode(ctx context.Context, user *User, code string) error {
	n.Logger.Info("two factor code for %s: %s", user.Email, code)
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, user *User, token string) error {
	n.Logger.Info("password reset token for %s: %s", user.Email, token)
	return nil
}

func (n *LogNotifier) SendEmailConfirmation(ctx context.Context, user *User, token string) error {
	n.Logger.Info("email confirmation token for %s: %s", user.Email, token)
	return nil
}
