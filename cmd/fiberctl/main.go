// fiberctl é a Central do Cliente no terminal. Usa os mesmos serviços do BFA,
// com o estado em SQLite no diretório de configuração do usuário e o token
// no chaveiro do sistema.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fibernet/central-cliente-bfa-go/internal/config"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/client"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/genai"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/storage"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.uber.org/zap"
)

const (
	keyringService = "fiberctl"
	cliProfile     = "cli"
	tokenEnv       = "FIBER_TOKEN"
)

const usage = `uso: fiberctl <comando> [opções]

comandos:
  login [-email e-mail] [-lembrar]   entra na Área do Cliente
  logout                             sai e apaga o token do chaveiro
  dashboard                          contratos, conexões e faturas
  faturas                            faturas em aberto e histórico
  pix <fatura>                       código PIX copia e cola da fatura
  boleto <fatura> [-o arquivo.pdf]   baixa o boleto em PDF
  segunda-via <cpf|cnpj>             consulta pública de boletos
  status [-force]                    instabilidades em serviços populares
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("comando desconhecido %q\n\n%s", args[0], usage)
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	app.in = stdin
	app.out = out
	return cmd(ctx, app, args[1:])
}

// app carries the services a command needs.
type app struct {
	store      *session.Store
	clientArea *service.ClientAreaService
	invoices   *service.InvoiceService
	documents  *service.DocumentService
	segundaVia *service.SegundaViaService
	status     *service.StatusService

	in     *os.File
	out    io.Writer
	logger *zap.Logger
	close  func()
}

func newApp(ctx context.Context) (*app, error) {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logLevel := "warn"
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logLevel = "debug"
	}
	logger := observability.NewLogger(logLevel)
	metrics := observability.NewMetrics()

	dir, err := stateDir()
	if err != nil {
		return nil, err
	}
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("abrir estado local: %w", err)
	}

	bus := session.NewBus()
	manager := session.NewManager(db, bus, session.WithTokenVault(newTokenVault(storage.NewKeyring(keyringService))))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	portalCB := resilience.NewCircuitBreaker("portal-api", func(err error) bool { return !client.CountsAsFailure(err) })
	portal := client.NewPortalClient(httpClient, cfg.PortalAPIURL, client.RoutesFor(cfg.PortalRoutes), portalCB, logger)

	ai := genai.NewClient(httpClient, cfg.GenAIAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel,
		resilience.NewCircuitBreaker("genai", nil),
		resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
	)
	prober := client.NewHTTPProber(httpClient, cfg.ConnectivityProbeURL)

	clientArea := service.NewClientAreaService(portal, cfg.DashboardCacheKey, bus, metrics, logger)

	return &app{
		store:      manager.Profile(cliProfile),
		clientArea: clientArea,
		invoices:   service.NewInvoiceService(clientArea, service.NewPixService(portal, metrics, logger), logger),
		documents:  service.NewDocumentService(portal),
		segundaVia: service.NewSegundaViaService(portal, service.NewPixService(port.PixFetcherFunc(portal.GetBoletoPix), metrics, logger), cfg.CacheTTL, metrics, logger),
		status:     service.NewStatusService(db, ai, prober, cfg.StatusCacheTTL, metrics, logger),
		logger:     logger,
		close: func() {
			db.Close()
			logger.Sync()
		},
	}, nil
}

// stateDir is ~/.config/fiberctl (or the platform equivalent).
func stateDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("diretório de configuração: %w", err)
	}
	dir := filepath.Join(base, keyringService)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// tokenVault reads FIBER_TOKEN before the keyring, so scripts and CI can
// run without a credential store. Writes always go to the keyring.
type tokenVault struct {
	keyring port.SecretStore
}

func newTokenVault(keyring port.SecretStore) *tokenVault {
	return &tokenVault{keyring: keyring}
}

func (v *tokenVault) GetSecret(name string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		return token, nil
	}
	return v.keyring.GetSecret(name)
}

func (v *tokenVault) SetSecret(name, value string) error {
	return v.keyring.SetSecret(name, value)
}

func (v *tokenVault) DeleteSecret(name string) error {
	return v.keyring.DeleteSecret(name)
}

var errUsage = errors.New("argumentos inválidos")
