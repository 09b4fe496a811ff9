// terminal is a CLI that plays the LigVideo terminal's side of the exchange.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	terminal keygen
//	terminal produtos -bridge URL [-key PRIVATE] [-id 1,2] [-sku CODE] [-nome TEXT] [-page N] [-size N]
//	terminal retorno -bridge URL -line ID:QTY [-line ID:QTY ...] [-send]
//	terminal link -store ID -line ID:QTY [-var VARIANT:PARENT ...] [-base URL]
//
// Examples:
//
//	terminal keygen > keys.env
//	terminal produtos -bridge http://localhost:8080 -nome camisa
//	terminal retorno -bridge http://localhost:8080 -line 42:2 -line 101:1 -send
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ligvideo-bridge/internal/cartline"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/model"
	"ligvideo-bridge/internal/seal"
)

var client = &http.Client{
	Timeout: 30 * time.Second,
	// The restore endpoint answers with a redirect worth showing as is.
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Global flags (apply to all commands)
var (
	bridgeURL string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "keygen":
		runKeygen(args)
	case "produtos":
		runProducts(args)
	case "retorno":
		runRestore(args)
	case "link":
		runLink(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `terminal - LigVideo terminal side of the bridge exchange

Usage:
  terminal <command> [options]

Commands:
  keygen    Generate a key pair for the store and the terminal
  produtos  Query the catalog and unseal it with the private key
  retorno   Build (or send) a cart restore request
  link      Build a terminal deep link

Environment:
  BRIDGE_URL            default for -bridge
  LIGVIDEO_PRIVATE_KEY  default for -key
  LIGVIDEO_STORE_ID     default for -store

A .env file in the working directory is loaded first.

Run 'terminal <command> -h' for command-specific options.
`)
}

// =============================================================================
// KEYGEN COMMAND
// =============================================================================

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	fs.Parse(args)

	pub, priv, err := seal.GenerateKey(rand.Reader)
	if err != nil {
		fatal("Failed to generate key pair: %v", err)
	}
	fmt.Printf("LIGVIDEO_PUBLIC_KEY=%s\n", seal.EncodeKey(pub))
	fmt.Printf("LIGVIDEO_PRIVATE_KEY=%s\n", seal.EncodeKey(priv))
}

// =============================================================================
// PRODUTOS COMMAND
// =============================================================================

func runProducts(args []string) {
	fs := flag.NewFlagSet("produtos", flag.ExitOnError)
	addCommonFlags(fs)
	var privateKey, ids, sku, name string
	var page, size int
	fs.StringVar(&privateKey, "key", os.Getenv("LIGVIDEO_PRIVATE_KEY"), "Terminal private key (base64)")
	fs.StringVar(&ids, "id", "", "Comma-separated product ids")
	fs.StringVar(&sku, "sku", "", "Exact SKU")
	fs.StringVar(&name, "nome", "", "Name search")
	fs.IntVar(&page, "page", 0, "Page number")
	fs.IntVar(&size, "size", 0, "Page size")
	fs.Parse(args)
	applyCommonFlags()

	key, err := seal.ParsePrivateKey(privateKey)
	if err != nil {
		fatal("Invalid private key: %v", err)
	}

	q := url.Values{}
	setIf(q, "id", ids)
	setIf(q, "codigo_barras", sku)
	setIf(q, "nome", name)
	if page > 0 {
		q.Set("paginaAtual", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("totalItem", strconv.Itoa(size))
	}

	path := "/produtos"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	status, _, body, err := doRequest(path)
	if err != nil {
		fatal("Request failed: %v", err)
	}
	if status >= 400 {
		fatal("HTTP %d: %s", status, string(body))
	}

	var sealed string
	if err := json.Unmarshal(body, &sealed); err != nil {
		fatal("Response is not a JSON string: %v", err)
	}
	plaintext, err := seal.OpenBase64(sealed, key)
	if err != nil {
		fatal("Failed to unseal catalog: %v", err)
	}

	var payload model.CatalogPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		fatal("Invalid catalog payload: %v", err)
	}

	if verbose {
		printJSON(plaintext, "  ")
	}
	printSuccess("%d products", len(payload.Data))
	for _, e := range payload.Data {
		sku := ""
		if e.SKU != "" {
			sku = fmt.Sprintf(" %s[%s]%s", colorGray, e.SKU, colorReset)
		}
		fmt.Printf("  %s%6d%s  %-40s %10s  stock %d%s\n",
			colorCyan, e.ProductID, colorReset, e.Name, e.Price.StringFixed(2), e.StockQuantity, sku)
	}
}

// =============================================================================
// RETORNO COMMAND
// =============================================================================

func runRestore(args []string) {
	fs := flag.NewFlagSet("retorno", flag.ExitOnError)
	addCommonFlags(fs)
	var lines lineList
	var send bool
	fs.Var(&lines, "line", "Cart line as ID:QTY (repeatable)")
	fs.BoolVar(&send, "send", false, "Send the request instead of printing the URL")
	fs.Parse(args)
	applyCommonFlags()

	if len(lines) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	path := "/retorno?prod=" + cartline.Encode(lines)
	if !send {
		fmt.Println(strings.TrimSuffix(bridgeURL, "/") + path)
		return
	}

	status, header, body, err := doRequest(path)
	if err != nil {
		fatal("Request failed: %v", err)
	}
	if status >= 400 {
		fatal("HTTP %d: %s", status, string(body))
	}
	printSuccess("Cart restored")
	fmt.Printf("  Location: %s%s%s\n", colorCyan, header.Get("Location"), colorReset)
	for _, c := range header.Values("Set-Cookie") {
		fmt.Printf("  Set-Cookie: %s\n", c)
	}
}

// =============================================================================
// LINK COMMAND
// =============================================================================

func runLink(args []string) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	var storeID, base string
	var lines lineList
	var variants variantList
	fs.StringVar(&storeID, "store", os.Getenv("LIGVIDEO_STORE_ID"), "Store id")
	fs.StringVar(&base, "base", "", "Terminal base URL (default "+deeplink.DefaultBaseURL+")")
	fs.Var(&lines, "line", "Cart line as ID:QTY (repeatable)")
	fs.Var(&variants, "var", "Variant as VARIANT:PARENT (repeatable)")
	fs.Parse(args)

	if storeID == "" {
		fs.Usage()
		os.Exit(1)
	}
	fmt.Println(deeplink.NewBuilder(base).Build(storeID, lines, variants.parents()))
}

// =============================================================================
// FLAG TYPES
// =============================================================================

// lineList collects repeated -line ID:QTY flags.
type lineList []model.CartLine

func (l *lineList) String() string {
	parts := make([]string, len(*l))
	for i, line := range *l {
		parts[i] = fmt.Sprintf("%d:%d", line.ItemID, line.Quantity)
	}
	return strings.Join(parts, ",")
}

func (l *lineList) Set(v string) error {
	id, qty, err := parsePair(v)
	if err != nil {
		return err
	}
	*l = append(*l, model.CartLine{ItemID: id, Quantity: int(qty)})
	return nil
}

// variantList collects repeated -var VARIANT:PARENT flags.
type variantList []deeplink.VariantHint

func (v *variantList) String() string {
	parts := make([]string, len(*v))
	for i, h := range *v {
		parts[i] = fmt.Sprintf("%d:%d", h.Variant, h.Parent)
	}
	return strings.Join(parts, ",")
}

func (v *variantList) Set(s string) error {
	variant, parent, err := parsePair(s)
	if err != nil {
		return err
	}
	*v = append(*v, deeplink.VariantHint{Parent: parent, Variant: variant})
	return nil
}

func (v variantList) parents() map[int64]int64 {
	m := make(map[int64]int64, len(v))
	for _, h := range v {
		m[h.Variant] = h.Parent
	}
	return m
}

func parsePair(s string) (int64, int64, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected A:B, got %q", s)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", a)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", b)
	}
	return x, y, nil
}

// =============================================================================
// HTTP
// =============================================================================

func addCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&bridgeURL, "bridge", envOr("BRIDGE_URL", "http://localhost:8080"), "Bridge base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func applyCommonFlags() {
	if noColor {
		disableColors()
	}
}

func doRequest(path string) (int, http.Header, []byte, error) {
	reqURL := strings.TrimSuffix(bridgeURL, "/") + path
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if !quiet {
		fmt.Printf("\n%s▶ REQUEST%s %sGET %s%s\n", colorYellow, colorReset, colorBold, path, colorReset)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		statusColor := colorGreen
		if resp.StatusCode >= 400 {
			statusColor = colorRed
		}
		fmt.Printf("%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, resp.StatusCode, colorReset, duration)
		if verbose {
			printJSON(body, "  ")
		}
	}
	return resp.StatusCode, resp.Header, body, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
