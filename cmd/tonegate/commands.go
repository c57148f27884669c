package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/tonegate/internal/api"
	"github.com/kalambet/tonegate/internal/config"
	"github.com/kalambet/tonegate/internal/descriptor"
	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/reconcile"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/textsource"
)

// withApp opens the app for the duration of one command.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func (a *app) currentProfile(ctx context.Context) (*profile.ToneProfile, error) {
	userID, err := a.identity.UserID()
	if err != nil {
		return nil, err
	}
	return a.profiles.Ensure(ctx, userID)
}

// inputText resolves the text argument, --file or piped stdin.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	file, _ := cmd.Flags().GetString("file")
	return textsource.Resolve(args, file, pipedStdin(cmd))
}

func pipedStdin(cmd *cobra.Command) io.Reader {
	in := cmd.InOrStdin()
	if in != os.Stdin {
		return in
	}
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	return os.Stdin
}

// sessionFlags reads the override flags that were set explicitly.
func sessionFlags(cmd *cobra.Command) map[string]float64 {
	out := make(map[string]float64)
	for _, name := range overrideNames {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetFloat64(name)
			out[name] = v
		}
	}
	return out
}

var overrideNames = []string{
	profile.OverrideFormality,
	profile.OverrideFriendliness,
	profile.OverrideEmotion,
	profile.OverrideDirectness,
}

func addOverrideFlags(cmd *cobra.Command) {
	for _, name := range overrideNames {
		cmd.Flags().Float64(name, 0, fmt.Sprintf("override %s (0-10) for this request only", name))
	}
}

func addInputFlags(cmd *cobra.Command, contextHelp string) {
	cmd.Flags().String("file", "", "read input from a text or PDF file")
	cmd.Flags().String("context", "", contextHelp)
	cmd.Flags().Bool("json", false, "print the full result as JSON")
}

const conversionContextHelp = "document kind: general, report, meeting-minutes, email, announcement, message, education"
const ragContextHelp = "domain: general, business, academic, social, personal"

// outcome prints a dispatch result. Backend failures become command errors.
func outcome(cmd *cobra.Command, res reconcile.Result, err error, render func(io.Writer)) error {
	if err != nil {
		return err
	}
	if !res.OK {
		return res.Err()
	}
	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(w, res)
	}
	render(w)
	return nil
}

// --- convert ---

var convertCmd = &cobra.Command{
	Use:   "convert [text...]",
	Short: "Rewrite text into direct, gentle and neutral variants",
	Long: `Rewrite text into three tone variants that follow the tone profile.

Examples:
  tonegate convert "Send me the report by Friday." --context email
  tonegate convert --file draft.pdf --formality 8
  cat note.txt | tonegate convert --avoid "As an AI"`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		p, err := a.currentProfile(cmd.Context())
		if err != nil {
			return err
		}
		ctxName, _ := cmd.Flags().GetString("context")
		avoid, _ := cmd.Flags().GetStringSlice("avoid")

		variants, res, err := a.router.Convert(cmd.Context(), gateway.ConvertRequest{
			Text:                text,
			Profile:             p.WithSession(sessionFlags(cmd)),
			Context:             gateway.ConversionContext(ctxName),
			NegativePreferences: avoid,
		})
		return outcome(cmd, res, err, func(w io.Writer) { writeVariants(w, variants) })
	}),
}

func init() {
	addInputFlags(convertCmd, conversionContextHelp)
	addOverrideFlags(convertCmd)
	convertCmd.Flags().StringSlice("avoid", nil, "extra phrases the rewrite must avoid")
}

// --- finetune ---

var finetuneCmd = &cobra.Command{
	Use:   "finetune [text...]",
	Short: "Rewrite text with the organization's fine-tuned model",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		p, err := a.currentProfile(cmd.Context())
		if err != nil {
			return err
		}
		ctxName, _ := cmd.Flags().GetString("context")
		force, _ := cmd.Flags().GetBool("force")

		out, res, err := a.router.FinetuneConvert(cmd.Context(), gateway.FinetuneRequest{
			Text:         text,
			Profile:      p.WithSession(sessionFlags(cmd)),
			Context:      gateway.ConversionContext(ctxName),
			ForceConvert: force,
		})
		return outcome(cmd, res, err, func(w io.Writer) {
			fmt.Fprintln(w, out.ConvertedText)
			if out.Reason != "" {
				fmt.Fprintf(w, "\n%s %s (%s)\n", colorize(colorBold, "Method:"), out.Method, out.Reason)
			}
		})
	}),
}

func init() {
	addInputFlags(finetuneCmd, conversionContextHelp)
	addOverrideFlags(finetuneCmd)
	finetuneCmd.Flags().Bool("force", false, "convert even if the text already matches the profile")
}

// --- rag ---

func ragCommand(use, short string, kind gateway.Capability) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			query, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			p, err := a.currentProfile(cmd.Context())
			if err != nil {
				return err
			}
			ctxName, _ := cmd.Flags().GetString("context")
			useStyles, _ := cmd.Flags().GetBool("use-styles")

			res, err := a.router.Dispatch(cmd.Context(), gateway.RAGRequest{
				Kind:      kind,
				Query:     query,
				Context:   gateway.RAGContext(ctxName),
				UseStyles: useStyles,
				Profile:   p,
			})
			return outcome(cmd, res, err, func(w io.Writer) {
				if ans, ok := res.Value.(reconcile.Answer); ok {
					writeAnswer(w, ans)
				}
			})
		}),
	}
	addInputFlags(cmd, ragContextHelp)
	cmd.Flags().Bool("use-styles", false, "answer in the profile's style")
	return cmd
}

var (
	askCmd         = ragCommand("ask [question...]", "Ask the knowledge base a question", gateway.CapRAGAsk)
	grammarCmd     = ragCommand("grammar [text...]", "Analyze grammar and register of a text", gateway.CapRAGAnalyzeGrammar)
	expressionsCmd = ragCommand("expressions [situation...]", "Suggest expressions for a situation", gateway.CapRAGSuggestExpressions)
)

// --- quality ---

var qualityCmd = &cobra.Command{
	Use:   "quality [text...]",
	Short: "Check a text's quality against the tone profile",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		p, err := a.currentProfile(cmd.Context())
		if err != nil {
			return err
		}
		ctxName, _ := cmd.Flags().GetString("context")

		report, res, err := a.router.AnalyzeQuality(cmd.Context(), gateway.QualityRequest{
			Text:    text,
			Profile: p,
			Context: gateway.ConversionContext(ctxName),
		})
		return outcome(cmd, res, err, func(w io.Writer) {
			writeJSON(w, report.Findings)
		})
	}),
}

func init() {
	addInputFlags(qualityCmd, conversionContextHelp)
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Upload documents into the knowledge base",
	Long: `Upload documents into the organization's knowledge base.

Each file is uploaded and registered on its own; one failure does not stop
the others.

Examples:
  tonegate ingest handbook.pdf style-guide.docx --company acme`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		company, _ := cmd.Flags().GetString("company")
		if company == "" {
			company = a.cfg.Ingest.CompanyID
		}
		report, err := runIngest(cmd.Context(), a, company, args)
		if err != nil {
			return err
		}
		writeBatch(cmd.OutOrStdout(), report)

		if _, failed := report.Counts(); failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(report.Files))
		}
		return nil
	}),
}

func init() {
	ingestCmd.Flags().String("company", "", "company id (default: ingest.company_id)")
}

func runIngest(ctx context.Context, a *app, company string, paths []string) (gateway.BatchReport, error) {
	files := make([]gateway.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return gateway.BatchReport{}, fmt.Errorf("opening %s: %w", p, err)
		}
		defer f.Close()
		files = append(files, gateway.UploadFile{Name: filepath.Base(p), Body: f})
	}
	printStep("Uploading %d file(s) for %s", len(files), company)
	return a.router.IngestBatch(ctx, company, files)
}

func writeBatch(w io.Writer, report gateway.BatchReport) {
	for _, f := range report.Files {
		switch f.Status {
		case gateway.StatusSucceeded:
			fmt.Fprintf(w, "%s %s (%d documents)\n", colorize(colorGreen, "✓"), f.Name, f.DocumentsProcessed)
		default:
			fmt.Fprintf(w, "%s %s: %s\n", colorize(colorRed, "✗"), f.Name, f.Error)
		}
	}
	succeeded, failed := report.Counts()
	fmt.Fprintf(w, "\nBatch %s: %d succeeded, %d failed\n", report.BatchID, succeeded, failed)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the tone profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile and what it implies",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.currentProfile(cmd.Context())
		if err != nil {
			return err
		}
		view := api.NewProfileView(p)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), view)
		}
		writeProfile(cmd.OutOrStdout(), view)
		return nil
	}),
}

func writeProfile(w io.Writer, view api.ProfileView) {
	d := view.Effective
	fmt.Fprintf(w, "%s %g (%s)\n", colorize(colorBold, "Formality:"), d.Formality, view.Descriptors[string(descriptor.DimFormality)])
	fmt.Fprintf(w, "%s %g (%s)\n", colorize(colorBold, "Friendliness:"), d.Friendliness, view.Descriptors[string(descriptor.DimFriendliness)])
	fmt.Fprintf(w, "%s %g (%s)\n", colorize(colorBold, "Emotion:"), d.Emotion, view.Descriptors[string(descriptor.DimEmotion)])
	fmt.Fprintf(w, "%s %g\n", colorize(colorBold, "Directness:"), d.Directness)
	fmt.Fprintf(w, "%s %t\n", colorize(colorBold, "Abbreviations:"), view.Constraints.UsesAbbreviations)
	fmt.Fprintf(w, "%s %t\n", colorize(colorBold, "Emoticons:"), view.Constraints.UsesEmoticons)
	fmt.Fprintf(w, "\n%s\n", view.Summary)
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Replace the profile with the default one",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		userID, err := a.identity.UserID()
		if err != nil {
			return err
		}
		if _, err := a.profiles.CreateDefault(cmd.Context(), userID); err != nil {
			return err
		}
		printSuccess("Default profile created for %s", userID)
		return nil
	}),
}

var profileSetCmd = &cobra.Command{
	Use:   "set <question> <answer>",
	Short: "Answer one questionnaire question",
	Long: `Answer one questionnaire question and save the rebuilt profile.

Examples:
  tonegate profile set formality 7
  tonegate profile set emoticon_usage never
  tonegate profile set closing_expressions "Best, Cheers"`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if _, err := setAnswer(cmd.Context(), a, args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	}),
}

// setAnswer rebuilds the profile from its answers with one answer changed
// and saves it. Save rejects a result that is not usable.
func setAnswer(ctx context.Context, a *app, question, answer string) (*profile.ToneProfile, error) {
	question = strings.TrimSpace(question)
	if question == "" || strings.TrimSpace(answer) == "" {
		return nil, errors.New("question and answer must not be blank")
	}
	current, err := a.currentProfile(ctx)
	if err != nil {
		return nil, err
	}

	answers := current.Answers()
	answers[question] = answer
	updated := profile.FromAnswers(current.UserID, answers, time.Now())
	if err := a.profiles.Save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

var profileProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show questionnaire completion",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.currentProfile(cmd.Context())
		if err != nil {
			return err
		}
		progress := api.Progress(p)
		w := cmd.OutOrStdout()
		for _, id := range sortedKeys(progress.Categories) {
			fmt.Fprintf(w, "  %-12s %3d%%\n", id, progress.Categories[id])
		}
		if len(progress.Missing) > 0 {
			fmt.Fprintf(w, "\nUnanswered: %s\n", strings.Join(progress.Missing, ", "))
		}
		return nil
	}),
}

func init() {
	profileShowCmd.Flags().Bool("json", false, "print as JSON")
	profileCmd.AddCommand(profileShowCmd, profileDefaultCmd, profileSetCmd, profileProgressCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past conversions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversions",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		limit, _ := cmd.Flags().GetInt("limit")
		convs, err := a.store.ListConversions(limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(convs) == 0 {
			fmt.Fprintln(w, "No conversions found.")
			return nil
		}
		for _, c := range convs {
			input := []rune(c.InputText)
			if len(input) > 60 {
				input = append(input[:60], []rune("...")...)
			}
			fmt.Fprintf(w, "%s  %s  %-22s %s\n",
				colorize(colorCyan, shortID(c.ID)),
				c.CreatedAt.Local().Format("2006-01-02 15:04"),
				c.Capability,
				string(input),
			)
		}
		return nil
	}),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one conversion",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		c, err := findConversion(a.store, args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), api.NewHistoryEntry(c))
	}),
}

// shortID is the id prefix shown by history list.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// findConversion accepts a full id or the 8-character prefix shown by list.
func findConversion(store *storage.Store, id string) (storage.Conversion, error) {
	c, err := store.GetConversion(id)
	if !errors.Is(err, storage.ErrNotFound) || len(id) >= 36 {
		return c, err
	}
	recent, err := store.ListConversions(1000)
	if err != nil {
		return storage.Conversion{}, err
	}
	for _, rc := range recent {
		if strings.HasPrefix(rc.ID, id) {
			return rc, nil
		}
	}
	return storage.Conversion{}, fmt.Errorf("conversion %s: %w", id, storage.ErrNotFound)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of conversions to list")
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if key == "server.token" {
			printSuccess("Set %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
