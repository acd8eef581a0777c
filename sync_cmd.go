package main

import (
	"fmt"

	"github.com/dgnsrekt/ankivox/internal/anki"
	"github.com/dgnsrekt/ankivox/internal/speech"
	"github.com/dgnsrekt/ankivox/internal/vox"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	syncQuery     string
	syncSource    string
	syncTarget    string
	syncVoice     string
	syncTempDir   string
	syncLimit     int
	syncOverwrite bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Generate speech for matching notes and attach it to a field",
		Long: paragraph(
			fmt.Sprintf("\nFind notes with an Anki query, synthesize the %s field with Azure Speech, upload the audio to your collection and write a [sound:...] tag into the %s field. Fields that already have a value are skipped unless --overwrite is set.", keyword("source"), keyword("target")),
		),
		Example: paragraph("ankivox sync -q \"deck:Spanish\" -s Front -t Audio\nankivox sync -q \"tag:new\" -s Word -t Pronunciation -v es-ES-ElviraNeural --limit 20"),
		Args:    cobra.NoArgs,
		RunE:    runSync,
	}
)

func runSync(cmd *cobra.Command, _ []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}

	voice := creds.DefaultVoice
	if syncVoice != "" {
		voice = syncVoice
	}

	// Fail fast on missing credentials, before any note is touched.
	tts, err := speech.NewSynthesizer(speech.Config{
		Key:          creds.SpeechKey,
		Region:       creds.SpeechRegion,
		DefaultVoice: voice,
	})
	if err != nil {
		return err
	}
	store := anki.New(anki.Config{URL: creds.AnkiURL})

	tempDir := syncTempDir
	if tempDir == "" {
		tempDir = viper.GetString("temp_dir")
	}
	tempDir, err = homedir.Expand(tempDir)
	if err != nil {
		return fmt.Errorf("unable to expand temp dir: %w", err)
	}

	fmt.Printf("Searching notes: %s...\n", syncQuery)

	res, err := vox.New(store, tts).Run(cmd.Context(), vox.Request{
		Query:       syncQuery,
		SourceField: syncSource,
		TargetField: syncTarget,
		Voice:       syncVoice,
		TempDir:     tempDir,
		Limit:       syncLimit,
		Overwrite:   syncOverwrite,
	})
	if err != nil {
		return err
	}

	if res.Found == 0 {
		fmt.Println("No matching notes found.")
		return nil
	}

	fmt.Println(render(successStyle, fmt.Sprintf("Completed! Successfully updated %d notes.", res.Updated)))
	if res.Skipped > 0 {
		fmt.Println(render(warningStyle, fmt.Sprintf("Skipped %d notes because the target field already had a value (use --overwrite to force update).", res.Skipped)))
	}
	for _, f := range res.Failures {
		fmt.Println(render(errorStyle, fmt.Sprintf("note %d: %s", f.NoteID, f.Reason)))
	}
	return nil
}

func init() {
	syncCmd.Flags().StringVarP(&syncQuery, "query", "q", "", "Anki search query, e.g. \"deck:Default\"")
	syncCmd.Flags().StringVarP(&syncSource, "source", "s", "", "source text field name")
	syncCmd.Flags().StringVarP(&syncTarget, "target", "t", "", "target audio field name")
	syncCmd.Flags().StringVarP(&syncVoice, "voice", "v", "", "Azure voice name (overrides configuration)")
	syncCmd.Flags().StringVar(&syncTempDir, "temp-dir", "", "directory for temporary audio files")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "limit the number of notes to process")
	syncCmd.Flags().BoolVar(&syncOverwrite, "overwrite", false, "overwrite the target field even if it already has a value")
	_ = syncCmd.MarkFlagRequired("query")
	_ = syncCmd.MarkFlagRequired("source")
	_ = syncCmd.MarkFlagRequired("target")
}
