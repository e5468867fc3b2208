package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marcinucieklak/examhub/internal/app"
	"github.com/marcinucieklak/examhub/internal/database"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/repository"
	"github.com/marcinucieklak/examhub/internal/seed"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ─── seed ──────────────────────────────────────────────────────────────

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, groups and the question bank from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, log := setup(cmd)
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			fx, err := seed.LoadFile(v.GetString("file"))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			auth := service.NewAuthService(cfg)
			var sum *seed.Summary
			err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
				var err error
				sum, err = seed.Apply(ctx, tx, fx, auth.HashPassword)
				return err
			})
			if err != nil {
				return fmt.Errorf("apply fixtures: %w", err)
			}

			log.Info().
				Int("users", sum.Users).
				Int("groups", sum.Groups).
				Int("memberships_added", sum.Members).
				Int("subjects", sum.Subjects).
				Int("topics", sum.Topics).
				Int("subtopics", sum.Subtopics).
				Int("questions_added", sum.Questions).
				Int("questions_skipped", sum.Skipped).
				Msg("Fixtures applied")
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "fixtures.yaml", "Path to the fixtures YAML file")
	return cmd
}

// ─── create-user ───────────────────────────────────────────────────────

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create or update an account, prompting for its password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, log := setup(cmd)
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			u := &model.User{
				Type:    model.UserType(v.GetString("type")),
				Email:   strings.ToLower(strings.TrimSpace(v.GetString("email"))),
				Name:    strings.TrimSpace(v.GetString("name")),
				Surname: strings.TrimSpace(v.GetString("surname")),
			}
			if !u.Type.Valid() {
				return errors.New("--type must be student or examiner")
			}
			if u.Email == "" || u.Name == "" || u.Surname == "" {
				return errors.New("--email, --name and --surname are required")
			}

			password, err := readPassword(fmt.Sprintf("Password for %s: ", u.Email))
			if err != nil {
				return err
			}
			if len(password) < 6 {
				return errors.New("password must be at least 6 characters")
			}

			auth := service.NewAuthService(cfg)
			if u.PasswordHash, err = auth.HashPassword(password); err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			ctx := cmd.Context()
			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repository.NewUserRepository(pool).Upsert(ctx, u); err != nil {
				return fmt.Errorf("save user: %w", err)
			}
			fmt.Printf("%s %s (%s, %s) saved with ID: %d\n", u.Name, u.Surname, u.Email, u.Type, u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("email", "", "Account email (unique)")
	f.String("name", "", "First name")
	f.String("surname", "", "Surname")
	f.String("type", string(model.UserTypeStudent), "Account type (student, examiner)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("surname")
	return cmd
}

// readPassword prompts on the terminal without echo. Piped input is read as
// a single line so scripts can provide the password.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// ─── token ─────────────────────────────────────────────────────────────

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed development token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, _ := setup(cmd)
			if cfg.JWTSecret == "" {
				return errors.New("JWT secret is required (--jwt-secret or JWT_SECRET)")
			}
			userID := v.GetInt64("user-id")
			if userID <= 0 {
				return errors.New("--user-id must be positive")
			}

			token, err := service.NewAuthService(cfg).
				GenerateToken(userID, model.UserType(v.GetString("type")), v.GetString("email"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64("user-id", 0, "User ID carried in the token")
	f.String("type", string(model.UserTypeStudent), "User type (student, examiner)")
	f.String("email", "", "Optional email claim")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

// ─── sweep ─────────────────────────────────────────────────────────────

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire every overdue session once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, log := setup(cmd)
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			limit := v.GetInt("limit")
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Sessions.SweepOverdue(ctx, limit)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			log.Info().Int("expired", n).Msg("Sweep finished")
			return nil
		},
	}
	cmd.Flags().Int("limit", 1000, "Maximum sessions to expire")
	return cmd
}
