// Package registration implements the register command and the yes/no
// confirmations that bind an external account and validate its token.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/random"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/storage"
)

// Usage is shown when the command is issued without an argument
const Usage = `Usage: /register "Website Account Name" | /register "Validation Token"`

// Metric steps
const (
	stepCommand  = "command"
	stepBind     = "bind"
	stepValidate = "validate"
)

// Workflow handles the register command and its confirmations
type Workflow struct {
	store    storage.RecordStore
	sessions *session.Manager
	cfg      features.Config
	clock    clock.Clock
	random   random.Random
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewWorkflow creates a new Workflow
func NewWorkflow(
	store storage.RecordStore,
	sessions *session.Manager,
	cfg features.Config,
	clk clock.Clock,
	rnd random.Random,
	rec metrics.Recorder,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		clock:    clk,
		random:   rnd,
		metrics:  rec,
		logger:   logger.With(slog.String("component", "registration-workflow")),
	}
}

// HandleCommand runs the register command for player. args are the words
// after the command name.
//
// A player who is not in the world or has no loaded record is ignored
// with ErrStateMismatch and no message. Other rejections message the
// player and return the matching model error. A staged confirmation
// returns nil; the outcome arrives later through the dialog.
func (w *Workflow) HandleCommand(ctx context.Context, player host.Player, args []string) error {
	st, ok := w.sessions.Lookup(player.ID())
	if !ok || !player.InWorld() || st.Closed() {
		return model.ErrStateMismatch
	}
	rec := st.Record()
	if rec == nil {
		return model.ErrStateMismatch
	}

	if !w.cfg.RegistrationEnabled {
		w.reject(player, "disabled", "Registration is currently disabled!")
		return model.ErrRegistrationDisabled
	}

	arg := strings.TrimSpace(strings.Join(args, " "))
	if arg == "" {
		w.reject(player, "usage", Usage)
		return model.ErrInvalidCommandUsage
	}

	if rec.Validated {
		w.reject(player, "already_validated",
			fmt.Sprintf("You are already registered to %q, and cannot register again.", rec.ExternalAccount))
		return model.ErrAlreadyValidated
	}

	arg, isToken := model.NormalizeRegisterArgument(arg)
	if !isToken {
		opID := uuid.NewString()
		st.SetPending(model.AwaitingAccountConfirm{ID: opID, ExternalAccount: arg})
		w.metrics.RecordRegistrationStep(stepCommand, "staged_account")
		resolveCtx := context.WithoutCancel(ctx)
		player.Confirm(fmt.Sprintf("Confirm registration to account: %s", arg), func(accepted bool) {
			w.logResolution(player, stepBind, w.ConfirmAccount(resolveCtx, player, opID, accepted))
		})
		return nil
	}

	if !rec.HasExternalAccount() {
		w.reject(player, "no_account",
			"You need to register a website account name before entering a validation token.")
		return model.ErrNoExternalAccount
	}
	if arg != rec.Token {
		w.reject(player, "token_mismatch",
			"Wrong validation token! Please double check your spelling before trying again.")
		return model.ErrTokenMismatch
	}

	opID := uuid.NewString()
	st.SetPending(model.AwaitingTokenConfirm{ID: opID, Token: arg})
	w.metrics.RecordRegistrationStep(stepCommand, "staged_token")
	resolveCtx := context.WithoutCancel(ctx)
	player.Confirm(fmt.Sprintf("Confirm registration token for account: %s", rec.ExternalAccount), func(accepted bool) {
		w.logResolution(player, stepValidate, w.ConfirmToken(resolveCtx, player, opID, accepted))
	})
	return nil
}

// ConfirmAccount resolves the account binding dialog staged as opID. The
// pending confirmation is cleared whatever the outcome. A dialog that was
// superseded by a later command resolves as ErrStateMismatch and leaves
// the newer confirmation pending.
func (w *Workflow) ConfirmAccount(ctx context.Context, player host.Player, opID string, accepted bool) error {
	st, rec, op, err := w.takePending(player, opID)
	pending, ok := op.(model.AwaitingAccountConfirm)
	if err != nil || !ok || pending.ExternalAccount == "" {
		w.fail(player, stepBind, "Error while handling your account registration confirmation, please try again.")
		return model.ErrStateMismatch
	}

	if !accepted {
		w.metrics.RecordRegistrationStep(stepBind, "cancelled")
		player.SendMessage("Account registration cancelled!")
		return nil
	}

	now := w.clock.Now()
	if err := rec.BindExternalAccount(pending.ExternalAccount, w.newToken(), now); err != nil {
		w.fail(player, stepBind,
			fmt.Sprintf("You are already registered to %q, and cannot register again.", rec.ExternalAccount))
		return err
	}
	if err := w.save(ctx, player, stepBind, rec); err != nil {
		return err
	}
	st.StoreRecord(rec)

	w.metrics.RecordRegistrationStep(stepBind, "confirmed")
	w.logger.Info("external account bound",
		slog.String("account", rec.AccountName),
		slog.String("external_account", rec.ExternalAccount),
	)
	player.SendMessage(fmt.Sprintf("You registered account %s, please visit %s to get your validation token!",
		rec.ExternalAccount, w.cfg.AccountURL))
	return nil
}

// ConfirmToken resolves the token validation dialog staged as opID. The
// token is checked again against the record because a new binding may
// have replaced it.
func (w *Workflow) ConfirmToken(ctx context.Context, player host.Player, opID string, accepted bool) error {
	st, rec, op, err := w.takePending(player, opID)
	pending, ok := op.(model.AwaitingTokenConfirm)
	if err != nil || !ok || pending.Token == "" {
		w.fail(player, stepValidate, "Error while handling your account validation confirmation, please try again.")
		return model.ErrStateMismatch
	}

	if !accepted {
		w.metrics.RecordRegistrationStep(stepValidate, "cancelled")
		player.SendMessage("Registration token validation cancelled!")
		return nil
	}

	if err := rec.Validate(pending.Token, w.clock.Now()); err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadyValidated):
			w.fail(player, stepValidate,
				fmt.Sprintf("You are already registered to %q, and cannot register again.", rec.ExternalAccount))
		default:
			w.metrics.RecordRegistrationStep(stepValidate, "mismatch")
			player.SendMessage("Error: your registration token is invalid, please try again.")
		}
		return err
	}
	if err := w.save(ctx, player, stepValidate, rec); err != nil {
		return err
	}
	st.StoreRecord(rec)

	w.metrics.RecordRegistrationStep(stepValidate, "confirmed")
	w.logger.Info("account validated",
		slog.String("account", rec.AccountName),
		slog.String("external_account", rec.ExternalAccount),
	)
	player.SendMessage("Thank you, your account is successfully validated!")
	return nil
}

// takePending clears and returns the session's pending confirmation for
// opID together with a working copy of its record
func (w *Workflow) takePending(player host.Player, opID string) (*session.State, *model.Record, model.PendingOperation, error) {
	st, ok := w.sessions.Lookup(player.ID())
	if !ok {
		return nil, nil, nil, model.ErrStateMismatch
	}
	op := st.TakePending(opID)
	rec := st.Record()
	if rec == nil {
		return st, nil, op, model.ErrStateMismatch
	}
	return st, rec, op, nil
}

func (w *Workflow) save(ctx context.Context, player host.Player, step string, rec *model.Record) error {
	if err := w.store.SaveRecord(ctx, rec); err != nil {
		w.metrics.RecordStorageError("save")
		w.fail(player, step, "Your registration could not be saved, please try again later.")
		return model.NewStorageError("save", rec.AccountName, err)
	}
	return nil
}

// newToken returns the marker followed by TokenDigits uniform digits
func (w *Workflow) newToken() string {
	var b strings.Builder
	b.WriteString(model.TokenMarker)
	for i := 0; i < model.TokenDigits; i++ {
		b.WriteString(strconv.Itoa(w.random.Intn(10)))
	}
	return b.String()
}

func (w *Workflow) reject(player host.Player, outcome, msg string) {
	w.metrics.RecordRegistrationStep(stepCommand, outcome)
	player.SendMessage(msg)
}

func (w *Workflow) fail(player host.Player, step, msg string) {
	w.metrics.RecordRegistrationStep(step, "error")
	player.SendMessage(msg)
}

func (w *Workflow) logResolution(player host.Player, step string, err error) {
	if err == nil {
		return
	}
	level := slog.LevelInfo
	if errors.Is(err, model.ErrStorage) || errors.Is(err, model.ErrStateMismatch) {
		level = slog.LevelWarn
	}
	w.logger.Log(context.Background(), level, "confirmation not applied",
		slog.String("player_id", player.ID()),
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
}
