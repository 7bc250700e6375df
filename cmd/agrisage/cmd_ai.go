package main

import (
	"bufio"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kerala-agrisage/agrisage/internal/client"
	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/utils"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the farming assistant",
	Long: `With a question, asks it once and prints the streamed answer.
Without one, starts an interactive session; type 'exit' to leave.`,
	RunE: runChat,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image file or URL>",
	Short: "Detect crop disease from a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnose,
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Assess crop risk from field conditions",
	Example: `  agrisage risk --crop Rice --temperature 31 --humidity 88 --ph 5.8 --season monsoon`,
	RunE: runRisk,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio file>",
	Short: "Turn a voice recording into text",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var (
	diagnoseStream bool
	riskForm       client.RiskForm
)

func init() {
	diagnoseCmd.Flags().BoolVar(&diagnoseStream, "stream", false, "Stream a full Markdown report instead of the summary")

	riskCmd.Flags().StringVar(&riskForm.Crop, "crop", "", "Crop name")
	riskCmd.Flags().StringVar(&riskForm.Temperature, "temperature", "", "Temperature in °C")
	riskCmd.Flags().StringVar(&riskForm.Humidity, "humidity", "", "Relative humidity in %")
	riskCmd.Flags().StringVar(&riskForm.PH, "ph", "", "Soil pH")
	riskCmd.Flags().StringVar(&riskForm.Season, "season", "", "Season, e.g. monsoon")
	riskCmd.Flags().StringVar(&riskForm.Location, "location", "", "Farm location")

	rootCmd.AddCommand(chatCmd, diagnoseCmd, riskCmd, transcribeCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	conv := c.NewConversation(language)

	send := func(q string) error {
		var printed string
		err := conv.Send(ctx, q, func(m client.Message) {
			if !strings.HasPrefix(m.Text, printed) {
				// The answer was replaced by the apology.
				printf(cmd, "\n%s", m.Text)
			} else {
				printf(cmd, "%s", m.Text[len(printed):])
			}
			printed = m.Text
		})
		printf(cmd, "\n")
		return err
	}

	if len(args) > 0 {
		return send(strings.Join(args, " "))
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 64<<10), 1<<20)
	for {
		printf(cmd, "> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := send(line); err != nil {
			if errors.Is(err, client.ErrNotAuthenticated) {
				return err
			}
			// The transcript already shows the apology; keep the session going.
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return in.Err()
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}

	req := core.DiagnosisRequest{Language: language}
	if strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://") {
		req.ImageURL = args[0]
	} else {
		data, mimeType, err := readMedia(args[0])
		if err != nil {
			return err
		}
		req.ImageDataURL = utils.EncodeDataURL(mimeType, data)
	}

	if diagnoseStream {
		_, err := c.StreamImageReport(ctx, req, func(chunk, _ string) { printf(cmd, "%s", chunk) })
		printf(cmd, "\n")
		return err
	}

	d, err := c.AnalyzeImage(ctx, req)
	if err != nil {
		return err
	}
	printf(cmd, "Disease:    %s\nConfidence: %.0f%%\nSeverity:   %s\n\nTreatment:\n%s\n\nPrevention:\n%s\n",
		d.Disease, d.Confidence, d.Severity, d.Treatment, d.Prevention)
	return nil
}

func runRisk(cmd *cobra.Command, args []string) error {
	// Checked before anything touches the network.
	if err := riskForm.Validate(); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	form := riskForm
	form.Language = language
	r, err := c.PredictRisk(ctx, form)
	if err != nil {
		return err
	}
	printf(cmd, "Overall risk: %s\n  Weather: %s\n  Disease: %s\n  Soil:    %s\nConfidence: %.0f%%\n",
		r.OverallRisk, r.WeatherRisk, r.DiseaseRisk, r.SoilRisk, r.Confidence)
	if len(r.Recommendations) > 0 {
		printf(cmd, "\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			printf(cmd, "  - %s\n", rec)
		}
	}
	return nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	data, mimeType, err := readMedia(args[0])
	if err != nil {
		return err
	}
	text, err := c.Transcribe(ctx, mimeType, data)
	if err != nil {
		return err
	}
	printf(cmd, "%s\n", text)
	return nil
}

// readMedia loads a file and works out its media type from the extension, then the content.
func readMedia(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return data, mimeType, nil
}
