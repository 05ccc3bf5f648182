package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	postgresRepo "github.com/finbooks/accounting/internal/adapter/repository/postgres"
	redisRepo "github.com/finbooks/accounting/internal/adapter/repository/redis"
	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/infrastructure/config"
	"github.com/finbooks/accounting/internal/infrastructure/logger"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
	"github.com/finbooks/accounting/internal/infrastructure/postgres"
	"github.com/finbooks/accounting/internal/infrastructure/redis"
	"github.com/finbooks/accounting/internal/usecase"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "acctl",
		Short: "Accounting engine admin tool",
		Long:  `Administrative commands for the accounting engine: migrations, trial balances and the balance cache.`,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(entryCmd())
	rootCmd.AddCommand(trialBalanceCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath)
		},
	})

	return cmd
}

// entryFile is the JSON shape accepted by "entry create".
type entryFile struct {
	TransactionDate string `json:"transaction_date"`
	Type            string `json:"type"`
	ReferenceNumber string `json:"reference_number"`
	Description     string `json:"description"`
	Lines           []struct {
		AccountID   string `json:"account_id"`
		ContactID   string `json:"contact_id"`
		Debit       string `json:"debit"`
		Credit      string `json:"credit"`
		Description string `json:"description"`
		Reference   string `json:"reference"`
	} `json:"lines"`
}

func entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Journal entry lifecycle",
	}

	var createdBy string
	createCmd := &cobra.Command{
		Use:   "create [file.json]",
		Short: "Validate and create a draft journal entry from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readEntryFile(args[0], createdBy)
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				entry, result, err := eng.journal.CreateEntry(ctx, input)
				if err != nil {
					return err
				}

				printResult(result)
				if !result.Valid {
					return fmt.Errorf("entry rejected by validation")
				}

				fmt.Printf("Created journal entry %s (%s) total %s\n",
					entry.ID, entry.JournalNumber, entry.TotalDebit.StringFixed(2))
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&createdBy, "by", "cli", "User recorded as the creator")
	cmd.AddCommand(createCmd)

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a journal entry and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				entry, err := eng.journal.GetEntry(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Printf("%s  %s  %s/%s  %s\n", entry.JournalNumber,
					entry.TransactionDate.Format("2006-01-02"),
					entry.Status, entry.TransactionStatus, entry.Description)
				for _, line := range entry.Lines {
					fmt.Printf("  %-26s debit=%s credit=%s %s\n",
						line.AccountID, line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Description)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(showCmd)

	cmd.AddCommand(entryTransitionCmd("post", "posted", "Post a draft entry to the ledger",
		func(ctx context.Context, eng *engine, id string) (*domain.ValidationResult, error) {
			return eng.journal.PostEntry(ctx, id)
		}))
	cmd.AddCommand(entryTransitionCmd("complete", "completed", "Mark an entry completed and update cached balances",
		func(ctx context.Context, eng *engine, id string) (*domain.ValidationResult, error) {
			return eng.journal.CompleteEntry(ctx, id)
		}))
	cmd.AddCommand(entryTransitionCmd("lock", "locked", "Lock a completed entry against modification",
		func(ctx context.Context, eng *engine, id string) (*domain.ValidationResult, error) {
			return eng.journal.LockEntry(ctx, id)
		}))

	var approvedBy string
	approveCmd := &cobra.Command{
		Use:   "approve [id]",
		Short: "Approve a posted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				result, err := eng.journal.ApproveEntry(ctx, args[0], approvedBy)
				if err != nil {
					return err
				}

				printResult(result)
				if !result.Valid {
					return fmt.Errorf("entry %s was not approved", args[0])
				}

				fmt.Printf("Approved entry %s\n", args[0])
				return nil
			})
		},
	}
	approveCmd.Flags().StringVar(&approvedBy, "by", "cli", "User recorded as the approver")
	cmd.AddCommand(approveCmd)

	var reversedBy string
	reverseCmd := &cobra.Command{
		Use:   "reverse [id]",
		Short: "Reverse a completed entry with a mirrored entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				reversal, result, err := eng.journal.ReverseEntry(ctx, args[0], reversedBy)
				if err != nil {
					return err
				}

				printResult(result)
				if !result.Valid {
					return fmt.Errorf("entry %s was not reversed", args[0])
				}

				fmt.Printf("Reversed entry %s with %s (%s)\n", args[0], reversal.ID, reversal.JournalNumber)
				return nil
			})
		},
	}
	reverseCmd.Flags().StringVar(&reversedBy, "by", "cli", "User recorded as the reverser")
	cmd.AddCommand(reverseCmd)

	return cmd
}

func entryTransitionCmd(use, done, short string, fn func(context.Context, *engine, string) (*domain.ValidationResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				result, err := fn(ctx, eng, args[0])
				if err != nil {
					return err
				}

				printResult(result)
				if !result.Valid {
					return fmt.Errorf("entry %s was not %s", args[0], done)
				}

				fmt.Printf("Entry %s %s\n", args[0], done)
				return nil
			})
		},
	}
}

func readEntryFile(path, createdBy string) (usecase.CreateEntryInput, error) {
	var input usecase.CreateEntryInput

	data, err := os.ReadFile(path)
	if err != nil {
		return input, err
	}

	var file entryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return input, fmt.Errorf("parse entry file: %w", err)
	}

	date, err := time.Parse("2006-01-02", file.TransactionDate)
	if err != nil {
		return input, fmt.Errorf("parse transaction date: %w", err)
	}

	input.TransactionDate = date
	input.Type = domain.JournalType(file.Type)
	input.ReferenceNumber = file.ReferenceNumber
	input.Description = file.Description
	input.CreatedBy = createdBy

	for _, line := range file.Lines {
		debit, err := parseAmount(line.Debit)
		if err != nil {
			return input, fmt.Errorf("parse debit for account %s: %w", line.AccountID, err)
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			return input, fmt.Errorf("parse credit for account %s: %w", line.AccountID, err)
		}

		input.Lines = append(input.Lines, usecase.CreateEntryLineInput{
			AccountID:   line.AccountID,
			ContactID:   line.ContactID,
			Debit:       debit,
			Credit:      credit,
			Description: line.Description,
			Reference:   line.Reference,
		})
	}

	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func trialBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Trial balance snapshots",
	}

	var generatedBy string
	generateCmd := &cobra.Command{
		Use:   "generate [year] [month]",
		Short: "Generate the trial balance snapshot for a period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				var tb *domain.TrialBalance

				err := eng.retrier.Retry(ctx, func() error {
					var genErr error
					tb, genErr = eng.trialBalances.Generate(ctx, year, month, generatedBy)
					return genErr
				})
				if err != nil {
					return err
				}

				fmt.Printf("Generated trial balance %s for %04d-%02d\n", tb.ID, tb.Year, tb.Month)
				fmt.Printf("Accounts: %d  Debits: %s  Credits: %s\n",
					len(tb.Entries), tb.TotalDebits.StringFixed(2), tb.TotalCredits.StringFixed(2))

				printResult(eng.trialBalances.Validate(tb))
				return nil
			})
		},
	}
	generateCmd.Flags().StringVar(&generatedBy, "by", "cli", "User recorded as the generator")
	cmd.AddCommand(generateCmd)

	validateCmd := &cobra.Command{
		Use:   "validate [year] [month]",
		Short: "Validate an existing snapshot's debit and credit totals",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				tb, err := eng.trialBalances.GetByPeriod(ctx, year, month)
				if err != nil {
					return err
				}

				result := eng.trialBalances.Validate(tb)
				printResult(result)
				if !result.Valid {
					return fmt.Errorf("trial balance %s is out of balance", tb.ID)
				}

				return nil
			})
		},
	}
	cmd.AddCommand(validateCmd)

	var approvedBy, notes string
	approveCmd := &cobra.Command{
		Use:   "approve [year] [month]",
		Short: "Approve a balanced snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				tb, err := eng.trialBalances.GetByPeriod(ctx, year, month)
				if err != nil {
					return err
				}

				result, err := eng.trialBalances.Approve(ctx, tb.ID, approvedBy, notes)
				if err != nil {
					return err
				}

				printResult(result)
				if !result.Valid {
					return fmt.Errorf("trial balance %s was not approved", tb.ID)
				}

				fmt.Printf("Approved trial balance %s\n", tb.ID)
				return nil
			})
		},
	}
	approveCmd.Flags().StringVar(&approvedBy, "by", "cli", "User recorded as the approver")
	approveCmd.Flags().StringVar(&notes, "notes", "", "Approval notes")
	cmd.AddCommand(approveCmd)

	notesCmd := &cobra.Command{
		Use:   "notes [year] [month] [notes]",
		Short: "Set a snapshot's notes, approved or not",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				tb, err := eng.trialBalances.GetByPeriod(ctx, year, month)
				if err != nil {
					return err
				}

				if err := eng.trialBalances.UpdateNotes(ctx, tb.ID, args[2]); err != nil {
					return err
				}

				fmt.Printf("Updated notes on trial balance %s\n", tb.ID)
				return nil
			})
		},
	}
	cmd.AddCommand(notesCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [year] [month]",
		Short: "Delete an unapproved snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				tb, err := eng.trialBalances.GetByPeriod(ctx, year, month)
				if err != nil {
					return err
				}

				if err := eng.trialBalances.Delete(ctx, tb.ID); err != nil {
					return err
				}

				fmt.Printf("Deleted trial balance %s\n", tb.ID)
				return nil
			})
		},
	}
	cmd.AddCommand(deleteCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [yearA] [monthA] [yearB] [monthB]",
		Short: "Compare two period snapshots account by account",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			yearA, monthA, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}
			yearB, monthB, err := parsePeriod(args[2], args[3])
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				cmp, err := eng.trialBalances.ComparePeriods(ctx, yearA, monthA, yearB, monthB)
				if err != nil {
					return err
				}

				fmt.Printf("Comparing %s to %s\n", cmp.PeriodA, cmp.PeriodB)
				for _, diff := range cmp.Differences {
					fmt.Printf("  %-10s %-30s %10s -> %10s  (%s, %s)\n",
						diff.AccountCode, diff.AccountName,
						diff.BalanceA.StringFixed(2), diff.BalanceB.StringFixed(2),
						diff.Difference.StringFixed(2), diff.Change)
				}
				fmt.Printf("Total absolute difference: %s\n", cmp.TotalDifference.StringFixed(2))
				return nil
			})
		},
	}
	cmd.AddCommand(compareCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest period first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				tbs, err := eng.trialBalances.List(ctx, 50, 0)
				if err != nil {
					return err
				}

				for _, tb := range tbs {
					fmt.Printf("%04d-%02d  %-9s  debits=%s credits=%s  %s\n",
						tb.Year, tb.Month, tb.Status,
						tb.TotalDebits.StringFixed(2), tb.TotalCredits.StringFixed(2), tb.ID)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Balance cache maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Recompute and rewrite all cached balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				if err := eng.balances.RefreshBalanceCache(ctx); err != nil {
					return err
				}

				fmt.Println("Balance cache refreshed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Show the liquid balance summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				summary, err := eng.balances.GetBalanceSummary(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("Bank:         %s\n", summary.BankBalance.StringFixed(2))
				fmt.Printf("Cash on hand: %s\n", summary.CashOnHand.StringFixed(2))
				fmt.Printf("Total liquid: %s\n", summary.TotalLiquid.StringFixed(2))
				fmt.Printf("Assets:       %s  Liabilities: %s  Equity: %s\n",
					summary.TotalAssets.StringFixed(2),
					summary.TotalLiabilities.StringFixed(2),
					summary.TotalEquity.StringFixed(2))
				fmt.Printf("Net income:   %s\n", summary.NetIncome.StringFixed(2))
				fmt.Printf("Accounts:     %d  generated at %s\n", summary.AccountCount, summary.GeneratedAt)
				return nil
			})
		},
	})

	return cmd
}

// engine bundles the wired use cases a command needs.
type engine struct {
	journal       *usecase.JournalUseCase
	trialBalances *usecase.TrialBalanceUseCase
	balances      *usecase.BalanceUseCase
	retrier       *postgresRepo.Retrier
}

// withEngine connects to the stores, wires the use cases, runs fn and tears
// everything down again. CLI commands are one-shot so nothing is kept open.
func withEngine(ctx context.Context, fn func(context.Context, *engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	m := metrics.New()

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	contactRepo := postgresRepo.NewContactRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	tbRepo := postgresRepo.NewTrialBalanceRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	validatorOpts := []usecase.ValidatorOption{
		usecase.WithPastDateHorizon(cfg.PastDateHorizonDays),
	}
	if t, err := decimal.NewFromString(cfg.MaterialityThreshold); err == nil {
		validatorOpts = append(validatorOpts, usecase.WithMaterialityThreshold(t))
	}
	if t, err := decimal.NewFromString(cfg.LargeAmountThreshold); err == nil {
		validatorOpts = append(validatorOpts, usecase.WithLargeAmountThreshold(t))
	}

	validatorUC := usecase.NewValidatorUseCase(accountRepo, contactRepo, journalRepo, m, validatorOpts...)
	immutabilityUC := usecase.NewImmutabilityUseCase(journalRepo)
	balanceUC := usecase.NewBalanceUseCase(accountRepo, journalRepo, cache, log, m,
		usecase.WithBalanceTTL(cfg.AccountBalanceTTL),
		usecase.WithSummaryTTL(cfg.BalanceSummaryTTL))
	calcUC := usecase.NewCalculationUseCase()
	memoizerUC := usecase.NewMemoizerUseCase(calcUC, log, m,
		usecase.WithMemoTTL(cfg.MemoizerTTL),
		usecase.WithMemoSweepInterval(cfg.MemoizerSweepInterval))
	journalUC := usecase.NewJournalUseCase(txManager, journalRepo, validatorUC, immutabilityUC, balanceUC, idGen, log, m)
	tbUC := usecase.NewTrialBalanceUseCase(txManager, tbRepo, accountRepo, journalRepo, memoizerUC, idGen, log, m, cfg.CompanyName)

	return fn(ctx, &engine{
		journal:       journalUC,
		trialBalances: tbUC,
		balances:      balanceUC,
		retrier:       postgresRepo.NewRetrier(log),
	})
}

func parsePeriod(yearArg, monthArg string) (int, int, error) {
	var year, month int
	if _, err := fmt.Sscanf(yearArg, "%d", &year); err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", yearArg)
	}
	if _, err := fmt.Sscanf(monthArg, "%d", &month); err != nil {
		return 0, 0, fmt.Errorf("invalid month %q", monthArg)
	}
	return year, month, nil
}

func printResult(result *domain.ValidationResult) {
	for _, e := range result.Errors {
		fmt.Printf("ERROR   %s: %s [%s]\n", e.Field, e.Message, e.Code)
	}
	for _, w := range result.Warnings {
		fmt.Printf("WARNING %s: %s [%s]\n", w.Field, w.Message, w.Code)
	}
}
