package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/agent/llm"
	"github.com/vendra/salescore/agent/memory"
	nodex "github.com/vendra/salescore/agent/nodes"
	"github.com/vendra/salescore/agent/pipeline"
	promptx "github.com/vendra/salescore/agent/prompt"
	"github.com/vendra/salescore/agent/rules"
	"github.com/vendra/salescore/agent/tool"
	configx "github.com/vendra/salescore/pkg/config"
	"github.com/vendra/salescore/pkg/coreapi"
	"github.com/vendra/salescore/pkg/kvstore"
	_ "github.com/vendra/salescore/pkg/logger/autoload"
	openrouterx "github.com/vendra/salescore/pkg/openrouter"
)

type AppConfig struct {
	RedisAddr     string `envconfig:"REDIS_ADDR" required:"true"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	BusinessID    string `envconfig:"BUSINESS_ID" default:"dev-business"`
	LeadID        string `envconfig:"LEAD_ID" default:"dev-lead"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	llmCfg := configx.MustNew[llm.Config]("LLM")
	coreCfg := configx.MustNew[coreapi.Config]("CORE")

	openRouterClient := openrouterx.NewClient(*openRouterCfg)
	if openRouterClient == nil {
		log.Fatal().Msg("initialize openrouter client")
	}

	kv := kvstore.NewRedis(appCfg.RedisAddr, kvstore.WithPassword(appCfg.RedisPassword))
	memStore := memory.New(kv)
	ruleStore := rules.New(kv)

	prompts, err := promptx.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load prompts")
	}

	model, err := llm.New(ctx, *openRouterCfg, *llmCfg, prompts)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize models")
	}

	profile := demoProfile(appCfg.BusinessID)

	core := coreapi.MustNew(*coreCfg)
	gateway := tool.NewGateway(tool.Deps{
		Core:      core,
		Knowledge: core,
		Products:  tool.NewCatalogSearcher(profile.Products),
	}, &tool.CoreTelemetry{Client: core})

	p, err := pipeline.New(memStore, ruleStore, model, model, gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}

	runDevLoop(ctx, p, appCfg, profile)
}

func demoProfile(businessID string) contractx.BusinessProfile {
	return contractx.BusinessProfile{
		BusinessID:   businessID,
		BusinessName: "Demo Store",
		Currency:     "MXN",
		Products: []contractx.Product{
			{ID: "p1", Name: "Curso Básico", Price: 499, Description: "Acceso por 3 meses"},
			{ID: "p2", Name: "Curso Completo", Price: 999, Description: "Acceso de por vida"},
		},
	}
}

// runDevLoop reads messages from stdin and prints each turn's result. It is
// a local harness around the pipeline, not a production transport.
func runDevLoop(ctx context.Context, p *pipeline.Pipeline, cfg *AppConfig, profile contractx.BusinessProfile) {
	var history []contractx.Message

	fmt.Println("salescore dev loop. Escribe un mensaje, o 'salir' para terminar.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "salir" {
			return
		}

		out, err := p.HandleMessage(ctx, nodex.GraphInput{
			BusinessID: cfg.BusinessID,
			LeadID:     cfg.LeadID,
			Message:    text,
			History:    history,
			Profile:    profile,
		})
		if err != nil {
			log.Error().Err(err).Msg("handle message")
			continue
		}

		history = append(history,
			contractx.Message{Role: "user", Content: text},
			contractx.Message{Role: "assistant", Content: out.Reply},
		)

		fmt.Println(out.Reply)
		log.Debug().
			Str("intent", string(out.Intent)).
			Str("stage", out.Stage).
			Bool("is_valid", out.IsValid).
			Int("tokens", out.TokensUsed).
			Int("tool_calls", len(out.ToolCalls)).
			Msg("turn finished")
	}
}
