package banner

import (
	"fmt"

	"chatrelay/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║     ███████║███████║   ██║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║███████╗███████╗██║  ██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Print prints the startup banner using the effective config.
func Print(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("Store:    %s\n", eff.DBPath)
	if d := eff.Config.Relay.Domain; d != "" {
		fmt.Printf("Domain:   %s\n", d)
	}
	if u := eff.Config.Bridge.URL; u != "" {
		fmt.Printf("Bridge:   %s\n", u)
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config source: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /send/{token}?msg=<text> - send text to a contact")
	fmt.Println("POST /send/{token}?property=<dot.path> - send extracted JSON value")
	fmt.Println("GET  /room/{token}?msg=<text> - send text to a group")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://localhost%s/send/<token>?msg=hello'\n", eff.Addr)
	fmt.Printf("curl -X POST 'http://localhost%s/send/<token>?property=data.text' -d '{\"data\":{\"text\":\"hi\"}}'\n", eff.Addr)
}
