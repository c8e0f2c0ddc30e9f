package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/adaptest/internal/app"
	"github.com/abhisek/adaptest/internal/bank"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/logging"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/ui/report"
)

const wrongAnswer = "?"

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated students through adaptive quizzes",
	Long: "Simulated students with known true ability answer generated quizzes " +
		"according to the 3PL model. Runs against an in-memory store so real " +
		"data is never touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		students, _ := cmd.Flags().GetInt("students")
		quizzes, _ := cmd.Flags().GetInt("quizzes")
		seed, _ := cmd.Flags().GetUint64("seed")
		parallel, _ := cmd.Flags().GetInt("parallel")
		bankFile, _ := cmd.Flags().GetString("bank")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if students < 1 || quizzes < 1 {
			return fmt.Errorf("--students and --quizzes must be positive")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		a, err := app.NewWithStore(cfg, store.NewMemory(), logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		items, err := simulationBank(bankFile, seed)
		if err != nil {
			return err
		}
		if err := a.Bank.Save(ctx, items); err != nil {
			return err
		}

		var srv *http.Server
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
			srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server", zap.Error(err))
				}
			}()
			fmt.Fprintf(os.Stderr, "Serving metrics on http://%s/metrics\n", metricsAddr)
		}

		rows := make([]report.SimRow, students)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for i := 0; i < students; i++ {
			g.Go(func() error {
				trueTheta := -2.5 + 5*float64(i)/float64(max(students-1, 1))
				row, err := simulateStudent(gctx, a, fmt.Sprintf("sim-%03d", i+1), trueTheta, quizzes, rand.New(rand.NewPCG(seed, uint64(i))))
				if err != nil {
					return err
				}
				rows[i] = row
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if wantJSON(cmd) {
			if err := printJSON(cmd, rows); err != nil {
				return err
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), report.Simulation(rows))
		}

		if srv != nil {
			fmt.Fprintln(os.Stderr, "Simulation finished; press Ctrl-C to stop the metrics server.")
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	},
}

// simulateStudent runs one student through n quizzes, answering each item
// correctly with the model probability at trueTheta.
func simulateStudent(ctx context.Context, a *app.App, id string, trueTheta float64, n int, rng *rand.Rand) (report.SimRow, error) {
	row := report.SimRow{StudentID: id, TrueTheta: trueTheta}
	var answered, correct int
	for q := 0; q < n; q++ {
		v, err := a.Service.GenerateQuiz(ctx, id)
		if err != nil {
			return row, fmt.Errorf("%s quiz %d: %w", id, q+1, err)
		}
		if v.Recovery {
			row.Recovery++
		}
		sess, err := a.Lifecycle.Get(ctx, v.ID)
		if err != nil {
			return row, err
		}
		for _, it := range sess.Items {
			answer := wrongAnswer
			if rng.Float64() < irt.Probability(trueTheta, it.Params) {
				item, err := a.Bank.Get(ctx, it.TopicKey, it.ItemID)
				if err != nil {
					return row, err
				}
				answer = item.Answer
				correct++
			}
			answered++
			if _, err := a.Service.SubmitAnswer(ctx, id, v.ID, it.Position, answer); err != nil {
				return row, err
			}
		}
		if _, err := a.Service.CompleteQuiz(ctx, id, v.ID); err != nil {
			return row, err
		}
		row.Quizzes++
	}

	st, err := a.Service.Student(ctx, id)
	if err != nil {
		return row, err
	}
	row.Estimate = st.Overall
	if answered > 0 {
		row.Accuracy = float64(correct) / float64(answered)
	}
	return row, nil
}

// simulationBank loads items from path, or generates six topics of forty
// numeric items spread over the ability scale.
func simulationBank(path string, seed uint64) ([]bank.Item, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read item bank: %w", err)
		}
		return bank.Decode(raw)
	}

	rng := rand.New(rand.NewPCG(seed, 0))
	var items []bank.Item
	for t := 0; t < 6; t++ {
		topic := fmt.Sprintf("topic.%d", t+1)
		for i := 0; i < 40; i++ {
			items = append(items, bank.Item{
				ID:         fmt.Sprintf("t%d-%03d", t+1, i),
				TopicKey:   topic,
				Type:       irt.TypeNumeric,
				Params:     irt.Params{A: 0.8 + 1.2*rng.Float64(), B: -3 + 6*rng.Float64()},
				Active:     true,
				Prompt:     fmt.Sprintf("Simulated item %d of %s", i, topic),
				Answer:     "1",
				AnswerType: bank.AnswerTypeInteger,
			})
		}
	}
	return items, nil
}

func init() {
	simulateCmd.Flags().Int("students", 10, "Number of simulated students")
	simulateCmd.Flags().Int("quizzes", 6, "Quizzes per student")
	simulateCmd.Flags().Uint64("seed", 1, "Random seed")
	simulateCmd.Flags().Int("parallel", 4, "Students simulated concurrently")
	simulateCmd.Flags().String("bank", "", "Item bank JSON file (default: synthetic bank)")
	simulateCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
}
