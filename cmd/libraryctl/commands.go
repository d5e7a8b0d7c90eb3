package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"librarian/internal/database"
	"librarian/internal/domain"
	"librarian/pkg/factory"
)

// operator is the caller used for catalog changes made from the command line.
var operator = domain.Caller{Role: domain.RoleAdmin}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Maintenance commands for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(), newSeedAdminCmd(), newImportBooksCmd())
	return root
}

// withFactory wires the application from the environment, applies pending
// migrations and hands the factory to fn.
func withFactory(ctx context.Context, fn func(factory.Factory) error) error {
	f, err := factory.NewFactory()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := database.NewMigrationService(f.GetDB(), f.GetLogger()).RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations could not be applied: %w", err)
	}
	return fn(f)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFactory(cmd.Context(), func(factory.Factory) error {
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations are up to date.")
				return nil
			})
		},
	}
}

func newSeedAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Register an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd.OutOrStdout(), "Password: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}

			return withFactory(cmd.Context(), func(f factory.Factory) error {
				user, err := f.GetUserService().Register(cmd.Context(), domain.RegisterRequest{
					Name:     name,
					Email:    email,
					Role:     domain.RoleAdmin,
					Password: password,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s registered (ID: %d, code: %s)\n", user.Email, user.ID, user.Code)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password, prompted for when omitted")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newImportBooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-books <file.csv>",
		Short: "Add books from a CSV file with code,title,author,stock rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			records, err := parseBookRecords(file)
			if err != nil {
				return err
			}

			return withFactory(cmd.Context(), func(f factory.Factory) error {
				imported, failed := importBooks(cmd.Context(), f.GetBookService(), records, cmd.OutOrStdout())
				fmt.Fprintf(cmd.OutOrStdout(), "\nImport complete!\nSuccessfully imported: %d books\nErrors: %d\n", imported, failed)
				if failed > 0 {
					return errors.New("some books could not be imported")
				}
				return nil
			})
		},
	}
}

// importBooks creates each record and then sets its stock. A failing record
// is reported and skipped.
func importBooks(ctx context.Context, books domain.BookService, records []bookRecord, out io.Writer) (imported, failed int) {
	for _, rec := range records {
		fmt.Fprintf(out, "Importing: %s by %s... ", rec.Title, rec.Author)

		book, err := books.Create(ctx, operator, domain.CreateBookRequest{Title: rec.Title, Author: rec.Author, Code: rec.Code})
		if err == nil {
			stock := rec.Stock
			_, err = books.Update(ctx, operator, book.ID, domain.UpdateBookRequest{Stock: &stock})
		}
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
		imported++
	}
	return imported, failed
}

func readPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out)
	return strings.TrimSpace(string(password)), nil
}
