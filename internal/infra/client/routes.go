package client

import (
	"fmt"
	"net/url"
)

// Routes maps each portal operation to a backend path.
// Two generations of the backend coexist; they differ only in a few paths.
type Routes struct {
	Login          string
	Dashboard      string
	ChangePassword string
	RecoverPass    string
	SearchBoletos  string
	pixPattern     string
	segundaVia     string
	notaFiscal     string
	loginAction    string
}

// RoutesFor returns the route preset by name. Unknown names fall back to "current".
func RoutesFor(preset string) Routes {
	r := Routes{
		Login:          "/auth/login",
		Dashboard:      "/dashboard",
		ChangePassword: "/senha/trocar",
		RecoverPass:    "/senha/recuperar",
		SearchBoletos:  "/boletos/buscar-cpf",
		pixPattern:     "/boletos/%s/pix",
		segundaVia:     "/boletos/%s/segunda-via",
		notaFiscal:     "/notas/%s/imprimir",
		loginAction:    "/logins/%s/%s",
	}
	if preset == "legacy" {
		r.ChangePassword = "/auth/trocar-senha"
		r.RecoverPass = "/auth/recuperar-senha"
		r.pixPattern = "/faturas/%s/pix"
	}
	return r
}

func (r Routes) Pix(id string) string {
	return fmt.Sprintf(r.pixPattern, url.PathEscape(id))
}

func (r Routes) BoletoPix(id string) string {
	return fmt.Sprintf("/boletos/%s/pix", url.PathEscape(id))
}

func (r Routes) SegundaVia(id string) string {
	return fmt.Sprintf(r.segundaVia, url.PathEscape(id))
}

func (r Routes) NotaFiscal(id string) string {
	return fmt.Sprintf(r.notaFiscal, url.PathEscape(id))
}

func (r Routes) LoginAction(loginID, action string) string {
	return fmt.Sprintf(r.loginAction, url.PathEscape(loginID), url.PathEscape(action))
}
