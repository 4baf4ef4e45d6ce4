package authctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/flagx"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server"
	"github.com/dmitrijs2005/numeria/internal/server/config"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/services"
)

// ErrUsage is returned for an unknown or missing command.
var ErrUsage = errors.New("usage: authctl <migrate|sweep|create-admin> [flags]")

type App struct {
	config  *config.Config
	storage *server.Storage
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens storage for c. Migrations are applied as part of opening.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	st, err := server.OpenStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return &App{config: c, storage: st, reader: bufio.NewReader(in), out: out}, nil
}

// Close releases storage.
func (a *App) Close() error {
	return a.storage.Close()
}

// Run executes cmd with its args.
func (a *App) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		_, err := fmt.Fprintln(a.out, "migrations applied")
		return err
	case "sweep":
		return a.sweep(ctx)
	case "create-admin":
		return a.createAdmin(ctx, args)
	default:
		return ErrUsage
	}
}

func (a *App) sweep(ctx context.Context) error {
	tokens := services.NewTokenService(a.storage.DBTX(), a.storage.Repos, a.config.PasswordResetTTL, a.config.EmailVerificationTTL)
	n, err := tokens.SweepExpired(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "removed %d expired rows\n", n)
	return err
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	var email, name string
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.StringVar(&email, "email", "", "admin email")
	fs.StringVar(&name, "name", "Administrator", "display name")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-name"})); err != nil {
		return err
	}

	var err error
	if email == "" {
		if email, err = GetSimpleText(a.reader, "Email", a.out); err != nil {
			return err
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pw, confirm) {
		return errors.New("passwords do not match")
	}
	if err := services.ValidateAccount(email, string(pw), name); err != nil {
		return err
	}

	hasher, err := services.NewPasswordHasher(a.config.BcryptCost, 0)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(ctx, string(pw))
	if err != nil {
		return err
	}

	u, err := a.storage.Repos.Users(a.storage.DBTX()).Create(ctx, &models.User{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		EmailVerified: true,
		PreferredLang: a.config.DefaultLanguage,
		IsAdmin:       true,
	})
	if err != nil {
		return err
	}
	services.NewSecurityLogWriter(a.storage.DBTX(), a.storage.Repos, logging.Nop(), nil).
		Record(ctx, u.ID, common.EventAdminCreated, "via", "authctl")

	_, err = fmt.Fprintf(a.out, "admin %s created with id %s\n", u.Email, u.ID)
	return err
}
