package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jstittsworth/bracket-optimizer/internal/bracket"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/jstittsworth/bracket-optimizer/pkg/logger"
	"github.com/sirupsen/logrus"
)

type output struct {
	ForecastDate string         `json:"forecast_date"`
	Teams        int            `json:"teams"`
	Feasible     bool           `json:"feasible"`
	Complete     bool           `json:"complete"`
	Value        *float64       `json:"value"`
	Probability  float64        `json:"probability"`
	Picks        []models.Pick  `json:"picks"`
	Stats        selector.Stats `json:"stats"`
}

func main() {
	input := flag.String("input", "", "forecast JSON file (array of rows or {\"forecasts\": [...]})")
	date := flag.String("date", "", "forecast date to use, latest in the file when empty")
	gender := flag.String("gender", "mens", "forecast gender")
	threshold := flag.Float64("min-first-round-win", 0.8, "keep teams whose opening round win probability is above this")
	maxDay := flag.Int("max-day", bracket.NumDays-1, "last pick day, inclusive")
	slack := flag.Float64("slack", selector.DefaultSlack, "slack added to every pruning bound")
	pairDays := flag.String("pair-days", "0,1", "comma separated days taking two picks")
	timeout := flag.Duration("timeout", 0, "stop the search after this long and report the best so far")
	nodeLimit := flag.Int64("node-limit", 0, "stop the search after this many nodes")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.InitLogger(*logLevel, !*asJSON)
	log.SetOutput(os.Stderr)
	logrus.SetOutput(os.Stderr)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: select -input forecasts.json [-date YYYY-MM-DD] [-max-day 9] [-slack 0.3] [-json]")
		os.Exit(2)
	}

	if err := run(*input, *date, *gender, *threshold, *maxDay, *slack, *pairDays, *timeout, *nodeLimit, *asJSON); err != nil {
		log.Errorf("Selection failed: %v", err)
		os.Exit(1)
	}
}

func run(input, date, gender string, threshold float64, maxDay int, slack float64, pairDays string,
	timeout time.Duration, nodeLimit int64, asJSON bool) error {

	rows, err := models.ReadForecastFile(input)
	if err != nil {
		return err
	}
	forecasts := models.ToForecasts(rows)
	if date == "" {
		date = bracket.LatestDate(forecasts, gender)
	}

	table, days, err := bracket.Prepare(forecasts, bracket.Filter{
		Gender:           gender,
		ForecastDate:     date,
		MinFirstRoundWin: threshold,
	})
	if err != nil {
		return err
	}

	opts := selector.DefaultOptions()
	opts.MaxDay = maxDay
	opts.Slack = slack
	opts.NodeLimit = nodeLimit
	if opts.PairDays, err = parseDays(pairDays); err != nil {
		return fmt.Errorf("invalid -pair-days: %w", err)
	}
	opts.Logger = logger.WithForecastContext("", date, gender)
	if !asJSON {
		opts.OnImprove = func(imp selector.Improvement) {
			fmt.Printf("%.6f %v\n", imp.Probability, imp.Selection)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := selector.New(table, days, bracket.DefaultDayRounds(), opts).Select(ctx)
	if err != nil && !errors.Is(err, selector.ErrCanceled) {
		return err
	}

	out := output{
		ForecastDate: date,
		Teams:        table.Len(),
		Feasible:     res.Feasible,
		Complete:     res.Complete,
		Picks:        models.PicksByDay(res.Selection, res.MaxDay, opts.PairDays),
		Stats:        res.Stats,
	}
	if res.Feasible {
		out.Value = models.FiniteOrNil(res.Value)
		out.Probability = res.Probability()
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !res.Feasible {
		fmt.Println("no complete selection exists")
		return nil
	}
	fmt.Printf("best probability %.6f (log %.6f) over %d teams, complete=%t\n",
		out.Probability, res.Value, out.Teams, out.Complete)
	for _, p := range out.Picks {
		fmt.Printf("day %d: %s\n", p.Day, p.Team)
	}
	return nil
}

func parseDays(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return []int{}, nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}
