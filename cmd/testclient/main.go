package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/api"
	"github.com/dasmlab/polyglot/pkg/federation"
)

const target = "target"

var (
	serverAddr = flag.String("addr", "localhost:8080", "HTTP server address")
	command    = flag.String("cmd", "translate", "Command: health, models, languages, detect, translate")
	sourceLang = flag.String("source", "", "Source language code (empty detects it)")
	targetLang = flag.String("target", "fr", "Target language code")
	baseLang   = flag.String("base", "en", "Base language for the languages command")
	textFile   = flag.String("file", "", "Path to text file to translate or detect")
	text       = flag.String("text", "", "Text to translate or detect (if file not provided)")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Request timeout")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	client, err := federation.New(federation.Config{
		Peers:      []string{target},
		Resolver:   federation.StaticResolver{target: *serverAddr},
		Attempts:   1,
		RetryDelay: time.Second,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	requestID := uuid.NewString()
	ctx = api.WithRequestID(ctx, requestID)

	logger.WithFields(logrus.Fields{
		"server":     *serverAddr,
		"command":    *command,
		"request_id": requestID,
	}).Info("Sending request...")

	start := time.Now()
	result, err := run(ctx, client, *command)
	if err != nil {
		if appErr, ok := federation.AsApplication(err); ok {
			logger.WithFields(logrus.Fields{
				"status": appErr.StatusCode,
			}).Fatalf("Server rejected request: %s", appErr.Message)
		}
		logger.WithError(err).Fatal("Request failed")
	}

	logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Request completed")

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func run(ctx context.Context, client *federation.Client, cmd string) (any, error) {
	switch strings.ToLower(cmd) {
	case "health":
		return client.GetHealth(ctx, target)
	case "models":
		models, err := client.GetModels(ctx, target)
		return api.ModelsResponse{Models: models}, err
	case "languages":
		langs, err := client.PostLanguages(ctx, target, *baseLang)
		return api.LanguagesResponse{Languages: langs}, err
	case "detect":
		input, err := readText()
		if err != nil {
			return nil, err
		}
		lang, err := client.PostDetection(ctx, target, input)
		return api.DetectionResponse{Text: lang}, err
	case "translate":
		input, err := readText()
		if err != nil {
			return nil, err
		}
		texts, err := client.PostTranslation(ctx, target, api.TranslationRequest{
			Texts:          []string{input},
			TargetLanguage: *targetLang,
			SourceLanguage: *sourceLang,
		})
		return api.TranslationResponse{Texts: texts}, err
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func readText() (string, error) {
	var input string
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", *textFile, err)
		}
		input = string(data)
	} else {
		input = *text
	}
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("either -file or -text must be provided")
	}
	return input, nil
}
