package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"golang.org/x/term"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":       loginCmd,
	"logout":      logoutCmd,
	"dashboard":   dashboardCmd,
	"faturas":     faturasCmd,
	"pix":         pixCmd,
	"boleto":      boletoCmd,
	"segunda-via": segundaViaCmd,
	"status":      statusCmd,
}

// ============================================================
// Sessão
// ============================================================

func loginCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "e-mail da Área do Cliente")
	remember := fs.Bool("lembrar", false, "lembrar o e-mail no próximo login")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if *email == "" {
		saved, _ := a.store.SavedEmail(ctx)
		if saved != "" {
			*email = saved
			*remember = true
			fmt.Fprintf(a.out, "E-mail: %s\n", saved)
		} else {
			fmt.Fprint(a.out, "E-mail: ")
			line, err := readLine(a.in)
			if err != nil {
				return err
			}
			*email = line
		}
	}

	fmt.Fprint(a.out, "Senha: ")
	password, err := readSecret(a.in)
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}

	view, err := a.clientArea.Login(ctx, a.store, *email, password, *remember)
	if err != nil {
		if view != nil && view.Error != "" {
			return errors.New(view.Error)
		}
		return err
	}

	fmt.Fprintf(a.out, "Olá, %s!\n", firstName(view.Dashboard.ClienteNome()))
	printOpenSummary(a.out, view.Dashboard)
	return nil
}

func logoutCmd(ctx context.Context, a *app, _ []string) error {
	if _, err := a.clientArea.Logout(ctx, a.store); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sessão encerrada.")
	return nil
}

// ============================================================
// Área do Cliente
// ============================================================

func dashboardCmd(ctx context.Context, a *app, _ []string) error {
	view, err := a.clientArea.Refresh(ctx, a.store)
	if err != nil {
		return err
	}
	if !view.Authenticated || view.Dashboard == nil {
		return notLoggedIn(view)
	}
	if view.Stale {
		fmt.Fprintln(a.out, "(dados em cache: não foi possível atualizar agora)")
	}

	dash := view.Dashboard
	fmt.Fprintf(a.out, "Cliente: %s\n\n", dash.ClienteNome())

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRATO\tPLANO\tSTATUS")
	for _, c := range dash.Contratos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Plano, c.Status)
	}
	tw.Flush()

	if len(dash.Logins) > 0 {
		fmt.Fprintln(a.out)
		tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CONEXÃO\tESTADO\tCONECTADO HÁ\tSINAL")
		for _, l := range dash.Logins {
			state := "offline"
			if l.Online == "S" {
				state = "online"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Login, state, dashIfEmpty(l.TempoConectado), dashIfEmpty(l.SinalUltimoAtendimento))
		}
		tw.Flush()
	}

	fmt.Fprintln(a.out)
	printOpenSummary(a.out, dash)

	if dash.AiAnalysis != nil && dash.AiAnalysis.Summary != "" {
		fmt.Fprintf(a.out, "\n%s\n", dash.AiAnalysis.Summary)
	}
	return nil
}

func faturasCmd(ctx context.Context, a *app, _ []string) error {
	list, err := a.invoices.List(ctx, a.store)
	if err != nil {
		return err
	}

	if len(list.Abertas) == 0 {
		fmt.Fprintln(a.out, "Nenhuma fatura em aberto.")
	} else {
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FATURA\tVENCIMENTO\tVALOR\tSITUAÇÃO")
		for _, f := range list.Abertas {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, formatDate(f.DataVencimento), service.FormatBRL(float64(f.Valor)), situacao(f))
		}
		tw.Flush()
		fmt.Fprintf(a.out, "\nTotal em aberto: %s\n", list.TotalFormat)
	}

	paid := 0
	for _, f := range list.Historico {
		if f.Status == domain.StatusPago {
			paid++
		}
	}
	fmt.Fprintf(a.out, "Histórico: %d faturas, %d pagas.\n", len(list.Historico), paid)
	return nil
}

func pixCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: uso: fiberctl pix <fatura>", errUsage)
	}
	result, err := a.invoices.Pix(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	if !result.Ready {
		fmt.Fprintln(a.out, result.Message)
		return nil
	}
	fmt.Fprintln(a.out, result.Pix.QRCode)
	return nil
}

func boletoCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("boleto", flag.ContinueOnError)
	output := fs.String("o", "", "arquivo de saída (padrão Fatura-<id>.pdf)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: uso: fiberctl boleto <fatura> [-o arquivo.pdf]", errUsage)
	}

	dl, err := a.documents.Boleto(ctx, a.store, rest[0], *output)
	if err != nil {
		return err
	}
	if dl.RedirectURL != "" {
		fmt.Fprintf(a.out, "Boleto disponível em %s\n", dl.RedirectURL)
		return nil
	}
	if err := os.WriteFile(dl.Document.Filename, dl.Document.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Boleto salvo em %s (%d bytes)\n", dl.Document.Filename, len(dl.Document.Data))
	return nil
}

// ============================================================
// Segunda via e status
// ============================================================

func segundaViaCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: uso: fiberctl segunda-via <cpf|cnpj>", errUsage)
	}
	search, err := a.segundaVia.Search(ctx, a.store, args[0])
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	if search.Cliente != "" {
		fmt.Fprintf(a.out, "Cliente: %s (%s)\n\n", search.Cliente, service.MaskDocument(args[0]))
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOLETO\tVENCIMENTO\tVALOR\tSITUAÇÃO")
	for _, b := range search.Boletos {
		valor := b.ValorFormatado
		if valor == "" {
			valor = service.FormatBRL(float64(b.Valor))
		}
		vencimento := b.VencimentoFormatado
		if vencimento == "" {
			vencimento = formatDate(b.Vencimento)
		}
		estado := "a vencer"
		if b.DiasVencimento < 0 {
			estado = fmt.Sprintf("vencido há %d dias", -b.DiasVencimento)
		}
		if b.Estimativa != nil {
			estado += ", atualizado " + b.Estimativa.TotalAtualizado
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, vencimento, valor, estado)
	}
	tw.Flush()

	r := search.Resumo
	fmt.Fprintf(a.out, "\n%d boletos (%d vencidos, %d a vencer). Total: %s\n",
		r.TotalBoletos, r.BoletosVencidos, r.BoletosAVencer, r.TotalEmAbertoFormatado)
	return nil
}

func statusCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	force := fs.Bool("force", false, "ignora o cache e consulta de novo")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	report, err := a.status.Current(ctx, *force)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	if !report.Online {
		fmt.Fprintln(a.out, "Sem conexão com a internet.")
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVIÇO\tSTATUS\tDETALHE")
	for _, s := range report.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Service, s.Status, s.Description)
	}
	tw.Flush()

	if report.Timestamp > 0 {
		at := time.UnixMilli(report.Timestamp).Format("02/01 15:04")
		if report.Cached {
			fmt.Fprintf(a.out, "\nAtualizado em %s (cache)\n", at)
		} else {
			fmt.Fprintf(a.out, "\nAtualizado em %s\n", at)
		}
	}
	return nil
}

// ============================================================
// Helpers
// ============================================================

// parseArgs lets flags come after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func readSecret(in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		value, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(value), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func notLoggedIn(view *domain.ClientAreaView) error {
	if view != nil && view.Error != "" {
		return fmt.Errorf("%s Rode fiberctl login.", view.Error)
	}
	return errors.New("sessão não encontrada. Rode fiberctl login")
}

func printOpenSummary(w io.Writer, dash *domain.Dashboard) {
	open := service.VisibleOpenInvoices(dash.Faturas, time.Now())
	if len(open) == 0 {
		fmt.Fprintln(w, "Nenhuma fatura em aberto.")
		return
	}
	var total float64
	for _, f := range open {
		total += float64(f.Valor)
	}
	overdue := service.OverdueInvoices(dash.Faturas, time.Now())
	fmt.Fprintf(w, "%d fatura(s) em aberto, total %s", len(open), service.FormatBRL(total))
	if len(overdue) > 0 {
		fmt.Fprintf(w, " (%d vencida(s))", len(overdue))
	}
	fmt.Fprintln(w)
}

func situacao(f service.InvoiceView) string {
	switch {
	case f.Estimativa != nil:
		return fmt.Sprintf("vencida há %d dias, atualizado %s", f.Estimativa.DiasAtraso, f.Estimativa.TotalAtualizado)
	case f.DiasParaVencimento != nil && *f.DiasParaVencimento == 0:
		return "vence hoje"
	case f.DiasParaVencimento != nil:
		return fmt.Sprintf("vence em %d dias", *f.DiasParaVencimento)
	}
	return "em aberto"
}

// formatDate turns 2006-01-02 into 02/01/2006; anything else is returned as is.
func formatDate(s string) string {
	if t, ok := service.ParseDueDate(s, time.Local); ok {
		return t.Format("02/01/2006")
	}
	return s
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "cliente"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
