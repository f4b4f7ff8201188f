package main

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/galaxy-admin/internal/api"
	"github.com/pavelanni/galaxy-admin/internal/form"
	"github.com/pavelanni/galaxy-admin/internal/model"
	"github.com/pavelanni/galaxy-admin/internal/store"
)

func subjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List and create subjects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List subjects on the platform",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsList,
	}
	addRemoteFlags(list.Flags())
	addLogFlags(list.Flags())

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a subject",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsCreate,
	}
	f := create.Flags()
	f.String("name", "", "Subject name (required)")
	f.String("ages", "", "Comma-separated age groups, e.g. \"3-5, 6-8\" (required)")
	f.String("journal", "", "SQLite submission journal path (empty disables the journal)")
	addRemoteFlags(f)
	addLogFlags(f)
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("ages")

	cmd.AddCommand(list, create)
	return cmd
}

func lessonsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "Validate, generate and create lessons",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a lesson from a lesson JSON file",
		Args:  cobra.NoArgs,
		RunE:  runLessonsCreate,
	}
	f := create.Flags()
	f.StringP("file", "f", "", "Lesson JSON file (required)")
	f.String("subject", "", "Subject ID the lesson belongs to (required)")
	f.StringArray("image", nil, "Attach an image to a question as INDEX=PATH (repeatable, 0-based)")
	f.Bool("force", false, "Submit even if the same file was already submitted successfully")
	f.Bool("strict-answers", false, "Require each correct answer to be one of its options")
	f.String("journal", "", "SQLite submission journal path (empty disables the journal)")
	addRemoteFlags(f)
	addLogFlags(f)
	_ = create.MarkFlagRequired("file")
	_ = create.MarkFlagRequired("subject")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a lesson JSON file without submitting it",
		Args:  cobra.NoArgs,
		RunE:  runLessonsValidate,
	}
	f = validate.Flags()
	f.StringP("file", "f", "", "Lesson JSON file (required)")
	f.String("subject", "", "Subject ID to validate against (optional)")
	f.Bool("strict-answers", false, "Require each correct answer to be one of its options")
	addLogFlags(f)
	_ = validate.MarkFlagRequired("file")

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a lesson JSON file for a topic and age group",
		Args:  cobra.NoArgs,
		RunE:  runLessonsGenerate,
	}
	f = generate.Flags()
	f.String("topic", "", "Lesson topic (required)")
	f.String("age-group", "", "Target age group, e.g. 6-8 (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addRemoteFlags(f)
	addAIFlags(f)
	addLogFlags(f)
	_ = generate.MarkFlagRequired("topic")
	_ = generate.MarkFlagRequired("age-group")

	cmd.AddCommand(create, validate, generate)
	return cmd
}

func imagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Upload images",
	}
	upload := &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload an image and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runImagesUpload,
	}
	addRemoteFlags(upload.Flags())
	addLogFlags(upload.Flags())
	cmd.AddCommand(upload)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the submission journal",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("journal", "galaxy-admin.db", "SQLite submission journal path")
	f.Int64("id", 0, "Show the full record of a single entry")
	f.IntP("limit", "n", 20, "Number of entries for table output (0 = all)")
	f.String("format", "table", "Output format (table, json)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func runSubjectsList(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	subjects, err := newRemote(v).ListSubjects(cmd.Context())
	if err != nil {
		return fmt.Errorf("list subjects: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGES")
	for _, s := range subjects {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.AvailableForAges, ", "))
	}
	return tw.Flush()
}

func runSubjectsCreate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	sf := form.Subject{Name: v.GetString("name"), Ages: v.GetString("ages")}
	if err := sf.Validate().Err(); err != nil {
		return err
	}

	db, err := openJournal(v.GetString("journal"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	req := sf.Request()
	created, err := newRemote(v).CreateSubject(cmd.Context(), req)
	sub := model.Submission{Kind: model.SubmissionSubject, Title: req.Name, Status: model.SubmissionOK}
	if err != nil {
		sub.Status = model.SubmissionFailed
		sub.Message = err.Error()
	} else if created != nil {
		sub.RemoteID = created.ID
	}
	if db != nil {
		if _, jerr := db.RecordSubmission(sub); jerr != nil {
			slog.Error("failed to record submission", "error", jerr)
		}
	}
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}

	slog.Info("created subject", "name", req.Name, "ages", req.AvailableForAges, "id", sub.RemoteID)
	fmt.Fprintln(cmd.OutOrStdout(), sub.RemoteID)
	return nil
}

// loadLessonFile reads a lesson JSON file into a fresh draft.
func loadLessonFile(path string) (*form.Lesson, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	l := form.NewLesson()
	if err := l.ImportJSON(data); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return l, data, nil
}

// parseImageFlag splits an INDEX=PATH pair.
func parseImageFlag(s string) (int, string, error) {
	idx, path, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return 0, "", fmt.Errorf("invalid --image %q: want INDEX=PATH", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return 0, "", fmt.Errorf("invalid --image index %q: %w", idx, err)
	}
	return n, path, nil
}

func runLessonsCreate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	path := v.GetString("file")
	lesson, data, err := loadLessonFile(path)
	if err != nil {
		return err
	}
	_ = lesson.SetField(form.FieldSubjectID, v.GetString("subject"))

	imageFlags, _ := cmd.Flags().GetStringArray("image")
	images := make(map[int]string)
	for _, s := range imageFlags {
		idx, p, err := parseImageFlag(s)
		if err != nil {
			return err
		}
		if _, err := lesson.Question(idx); err != nil {
			return fmt.Errorf("--image %s: %w", s, err)
		}
		images[idx] = p
	}

	if err := lesson.Validate(form.ValidateOptions{RequireAnswerInOptions: v.GetBool("strict-answers")}).Err(); err != nil {
		return err
	}

	db, err := openJournal(v.GetString("journal"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	digest := sha256sum(data)
	if db != nil && !v.GetBool("force") {
		prev, err := db.LastSuccessfulByDigest(digest)
		if err != nil {
			return fmt.Errorf("check journal: %w", err)
		}
		if prev != nil {
			slog.Warn("lesson file already submitted, skipping (use --force to resubmit)",
				"path", path, "remote_id", prev.RemoteID, "at", prev.CreatedAt)
			return nil
		}
	}

	remote := newRemote(v)
	for idx, p := range images {
		url, err := uploadFile(cmd, remote, p)
		if err != nil {
			return fmt.Errorf("question %d image: %w", idx, err)
		}
		_ = lesson.AttachImage(idx, url)
		slog.Info("uploaded image", "question", idx, "url", url)
	}

	req := lesson.Request()
	created, err := remote.CreateLesson(ctx, req)
	sub := model.Submission{Kind: model.SubmissionLesson, Title: req.Title, Digest: digest, Status: model.SubmissionOK}
	if err != nil {
		sub.Status = model.SubmissionFailed
		sub.Message = err.Error()
	} else if created != nil {
		sub.RemoteID = created.ID
	}
	if db != nil {
		if _, jerr := db.RecordSubmission(sub); jerr != nil {
			slog.Error("failed to record submission", "error", jerr)
		}
	}
	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	slog.Info("created lesson", "title", req.Title, "questions", len(req.Questions), "id", sub.RemoteID)
	fmt.Fprintln(cmd.OutOrStdout(), sub.RemoteID)
	return nil
}

func runLessonsValidate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lesson, _, err := loadLessonFile(v.GetString("file"))
	if err != nil {
		return err
	}
	subject := v.GetString("subject")
	_ = lesson.SetField(form.FieldSubjectID, subject)

	var errs form.ValidationErrors
	for _, e := range lesson.Validate(form.ValidateOptions{RequireAnswerInOptions: v.GetBool("strict-answers")}) {
		// Lesson files do not carry a subject.
		if subject == "" && e.Field == string(form.FieldSubjectID) {
			continue
		}
		errs = append(errs, e)
	}

	out := cmd.OutOrStdout()
	for _, e := range errs {
		fmt.Fprintln(out, e.Error())
	}
	if err := errs.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %q with %d questions\n", lesson.Title(), lesson.Len())
	return nil
}

func runLessonsGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	gen, err := newGenerator(ctx, v, newRemote(v))
	if err != nil {
		return err
	}
	req := model.GenerateRequest{
		Topic:    strings.TrimSpace(v.GetString("topic")),
		AgeGroup: strings.TrimSpace(v.GetString("age-group")),
	}
	if req.Topic == "" || req.AgeGroup == "" {
		return fmt.Errorf("topic and age group are required")
	}

	resp, err := gen.GenerateLessonContent(ctx, req)
	if err != nil {
		return fmt.Errorf("generate lesson: %w", err)
	}

	lesson := form.NewLesson()
	lesson.MergeAIResponse(*resp)
	data, err := lesson.ExportJSON()
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(cmd, v.GetString("output"), data)
}

func runImagesUpload(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	url, err := uploadFile(cmd, newRemote(v), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func uploadFile(cmd *cobra.Command, remote *api.Client, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	url, err := remote.UploadImage(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return url, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openJournal(v.GetString("journal"))
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("journal path is required")
	}
	defer db.Close()

	if id := v.GetInt64("id"); id > 0 {
		return printSubmission(cmd, db, id, v.GetString("output"))
	}

	if strings.ToLower(v.GetString("format")) == "json" {
		export, err := db.ExportHistory(time.Now())
		if err != nil {
			return fmt.Errorf("export history: %w", err)
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		return writeOutput(cmd, v.GetString("output"), data)
	}

	subs, err := db.ListSubmissions(v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}
	w, closeFn, err := openOutput(cmd, v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeFn()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tSTATUS\tREMOTE ID\tWHEN")
	for _, s := range subs {
		status := string(s.Status)
		if s.Message != "" {
			status += ": " + s.Message
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Kind, s.Title, status, s.RemoteID, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total, err := db.SubmissionCount()
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if total > len(subs) {
		fmt.Fprintf(w, "showing %d of %d entries (use -n 0 for all)\n", len(subs), total)
	}
	return nil
}

func printSubmission(cmd *cobra.Command, db *store.Store, id int64, outPath string) error {
	s, err := db.GetSubmission(id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no journal entry with id %d", id)
	}
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}
	w, closeFn, err := openOutput(cmd, outPath)
	if err != nil {
		return err
	}
	defer closeFn()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", s.ID)
	fmt.Fprintf(tw, "Kind:\t%s\n", s.Kind)
	fmt.Fprintf(tw, "Title:\t%s\n", s.Title)
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	fmt.Fprintf(tw, "Remote ID:\t%s\n", s.RemoteID)
	fmt.Fprintf(tw, "Message:\t%s\n", s.Message)
	fmt.Fprintf(tw, "Digest:\t%s\n", s.Digest)
	fmt.Fprintf(tw, "When:\t%s\n", s.CreatedAt.Local().Format(time.RFC3339))
	return tw.Flush()
}

func openOutput(cmd *cobra.Command, outPath string) (io.Writer, func(), error) {
	if outPath == "" || outPath == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeOutput(cmd *cobra.Command, outPath string, data []byte) error {
	w, closeFn, err := openOutput(cmd, outPath)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
