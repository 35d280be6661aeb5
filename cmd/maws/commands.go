package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dnaindex/maws/bio/fasta"
	"github.com/dnaindex/maws/bwtindex"
	"github.com/dnaindex/maws/enumerator"
	"github.com/dnaindex/maws/maws"
)

func buildIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "build-index",
		Usage: "Parse a FASTA file into a packed BWT index suitable for maws/mrws.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "fasta",
				Usage:    "Path to the input FASTA file.",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Path to write the serialized index to.",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "reverse-complement",
				Usage: "Append each record's reverse complement, separated by '#', so the index is strand-symmetric.",
			},
		},
		Action: func(c *cli.Context) error {
			return buildIndexAction(c)
		},
	}
}

func buildIndexAction(c *cli.Context) error {
	start := time.Now()

	f, err := os.Open(c.String("fasta"))
	if err != nil {
		return fmt.Errorf("maws: opening fasta file: %w", err)
	}
	defer f.Close()

	parser := fasta.NewParser(f, 1<<20)
	var records []fasta.Record
	for {
		record, err := parser.Next()
		if record != nil && record.Sequence != "" {
			records = append(records, *record)
		}
		if err != nil {
			break
		}
	}
	if len(records) == 0 {
		return fmt.Errorf("maws: %s contains no usable fasta records", c.String("fasta"))
	}

	var text []byte
	if c.Bool("reverse-complement") {
		text = fasta.ConcatenateWithReverseComplement(records)
	} else {
		for i, r := range records {
			if i > 0 {
				text = append(text, 'N')
			}
			text = append(text, r.Sequence...)
		}
	}

	loadTime := time.Since(start)

	buildStart := time.Now()
	idx, err := bwtindex.Build(text)
	if err != nil {
		return fmt.Errorf("maws: building index: %w", err)
	}
	buildTime := time.Since(buildStart)

	out, err := os.Create(c.String("output"))
	if err != nil {
		return fmt.Errorf("maws: creating output file: %w", err)
	}
	defer out.Close()
	if err := idx.Serialize(out); err != nil {
		return fmt.Errorf("maws: serializing index: %w", err)
	}

	printCSVStatusLine(csvStatus{
		textLength:  idx.TextLength(),
		loadTime:    loadTime,
		processTime: buildTime,
		peakAlloc:   peakAllocDuring(func() {}),
		entropyBits: maws.EntropyBits(idx.Probabilities()),
	})
	return nil
}

func mawsCommand() *cli.Command {
	return &cli.Command{
		Name:  "maws",
		Usage: "Report the minimal absent words of an indexed text.",
		Flags: detectFlags(),
		Action: func(c *cli.Context) error {
			return runDetect(c, maws.ModeMAW)
		},
	}
}

func mrwsCommand() *cli.Command {
	return &cli.Command{
		Name:  "mrws",
		Usage: "Report the minimal rare words of an indexed text, within a frequency window.",
		Flags: append(detectFlags(),
			&cli.IntFlag{
				Name:     "low-freq",
				Usage:    "Lower bound (inclusive) of the rare-word frequency window.",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "high-freq",
				Usage:    "Upper bound (exclusive) of the rare-word frequency window; flanking substrings must occur at least this often.",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			return runDetect(c, maws.ModeMRW)
		},
	}
}

func detectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "index",
			Usage:    "Path to a serialized index produced by build-index.",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Path to write emitted words to. If omitted, only the summary line is printed.",
		},
		&cli.IntFlag{
			Name:  "min-length",
			Usage: "Minimum length of an emitted word.",
			Value: 2,
		},
		&cli.IntFlag{
			Name:  "max-length",
			Usage: "Maximum length of a visited substring (0 means unbounded).",
		},
		&cli.BoolFlag{
			Name:  "compress",
			Usage: "Use run-length compressed encoding for homopolymer-run words.",
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "Number of worker goroutines to traverse with.",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "histogram-min",
			Usage: "Minimum length tracked by the length histogram (0 disables the histogram).",
		},
		&cli.IntFlag{
			Name:  "histogram-max",
			Usage: "Maximum length tracked by the length histogram.",
		},
		&cli.BoolFlag{
			Name:  "score",
			Usage: "Score emitted words with a log-odds surprise score derived from the index's empirical base composition; the score is used only by --min-score and is not written out.",
		},
		&cli.Float64Flag{
			Name:  "min-score",
			Usage: "Drop emitted words scoring below this log-odds threshold (requires --score).",
		},
	}
}

func runDetect(c *cli.Context, mode maws.Mode) error {
	f, err := os.Open(c.String("index"))
	if err != nil {
		return fmt.Errorf("maws: opening index file: %w", err)
	}
	defer f.Close()

	loadStart := time.Now()
	idx, err := bwtindex.Load(f)
	if err != nil {
		return fmt.Errorf("maws: loading index: %w", err)
	}
	loadTime := time.Since(loadStart)

	params := maws.Params{
		Mode:         mode,
		MinLength:    uint64(c.Int("min-length")),
		HistogramMin: uint64(c.Int("histogram-min")),
		HistogramMax: uint64(c.Int("histogram-max")),
		OutputPath:   c.String("output"),
		Compress:     c.Bool("compress"),
	}
	if mode == maws.ModeMRW {
		params.LowFreq = uint64(c.Int("low-freq"))
		params.HighFreq = uint64(c.Int("high-freq"))
	}
	if c.Bool("score") {
		var minScore *float64
		if c.IsSet("min-score") {
			v := c.Float64("min-score")
			minScore = &v
		}
		params.Scorer = maws.NewLogOddsScorer(idx.LogProbabilities(), minScore)
	}

	state, err := maws.New(params)
	if err != nil {
		return fmt.Errorf("maws: initializing detector: %w", err)
	}

	traversalParams := enumerator.Params{
		TraversalMaximality: enumerator.MaximalityDistinctSymbols,
	}
	if c.IsSet("max-length") {
		traversalParams.MaxLength = uint64(c.Int("max-length"))
	}

	var processTime time.Duration
	var peak uint64
	threads := c.Int("threads")
	processStart := time.Now()
	peak = peakAllocDuring(func() {
		if threads <= 1 {
			enumerator.Run(idx, traversalParams, state)
			return
		}
		if _, err = enumerator.RunParallel(context.Background(), idx, traversalParams, state, threads); err != nil {
			return
		}
	})
	if err != nil {
		return fmt.Errorf("maws: running traversal: %w", err)
	}
	processTime = time.Since(processStart)

	minLen, maxLen := state.ObservedLengthRange()
	printCSVStatusLine(csvStatus{
		textLength:  idx.TextLength(),
		loadTime:    loadTime,
		processTime: processTime,
		peakAlloc:   peak,
		nMAWs:       state.NMAWs(),
		minLength:   minLen,
		maxLength:   maxLen,
		nMaxreps:    state.NMaxreps(),
		nMAWMaxreps: state.NMAWMaxreps(),
	})

	if hist := state.Histogram(); hist != nil {
		printHistogram(params.HistogramMin, hist)
	}
	return nil
}
