package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgnsrekt/ankivox/internal/speech"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var (
	voicesLocale string
	voicesFilter string

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "List available Azure text-to-speech voices",
		Long: paragraph(
			fmt.Sprintf("\nList the %s catalog of the configured Azure Speech resource. Narrow it down by locale or fuzzy-match on the voice name.", keyword("voice")),
		),
		Example: paragraph("ankivox voices\nankivox voices -l en-US\nankivox voices -f elvira"),
		Args:    cobra.NoArgs,
		RunE:    runVoices,
	}
)

func runVoices(cmd *cobra.Command, _ []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}

	tts, err := speech.NewSynthesizer(speech.Config{
		Key:    creds.SpeechKey,
		Region: creds.SpeechRegion,
	})
	if err != nil {
		return err
	}

	voices, err := tts.Voices(cmd.Context(), voicesLocale)
	if err != nil {
		return err
	}

	if voicesFilter != "" {
		names := make([]string, len(voices))
		for i, v := range voices {
			names[i] = v.ShortName
		}
		matches := fuzzy.Find(voicesFilter, names)
		filtered := make([]speech.Voice, 0, len(matches))
		for _, m := range matches {
			filtered = append(filtered, voices[m.Index])
		}
		// fuzzy.Find ranks by score; restore name order for the table.
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].ShortName < filtered[j].ShortName
		})
		voices = filtered
	}

	if len(voices) == 0 {
		fmt.Println("No voices matched.")
		return nil
	}

	fmt.Printf("%-40s | %-10s | %-10s\n", "Voice Name", "Gender", "Locale")
	fmt.Println(strings.Repeat("-", 65))
	for _, v := range voices {
		fmt.Printf("%-40s | %-10s | %-10s\n", v.ShortName, v.Gender, v.Locale)
	}
	return nil
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesLocale, "locale", "l", "", "filter voices by locale (e.g. en-US, zh-CN)")
	voicesCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy-filter voices by name")
}
