package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "overview":
		handleOverview(args)
	case "tenant":
		handleTenant(args)
	case "audit":
		listAudit(args)
	case "me":
		whoAmI()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: entrasecure auth <login|token|logout>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		startLogin()
	case "token":
		saveTokenFromArgs(args[1:])
	case "logout":
		logout()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleOverview(args []string) {
	fs := flag.NewFlagSet("overview", flag.ExitOnError)
	cached := fs.Bool("cached", false, "serve the latest stored snapshot instead of a fresh build")
	asJSON := fs.Bool("json", false, "print the raw JSON response")
	fs.Parse(args)

	path := "/security/overview"
	if *cached {
		path += "?cached=1"
	}

	var overview map[string]interface{}
	if !doGet(path, &overview) {
		return
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(overview)
		return
	}

	printOverviewSummary(overview)
}

func handleTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: entrasecure tenant <users|groups|apps|roles>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "users":
		listTenantUsers(args[1:])
	case "groups":
		listTenantGroups(args[1:])
	case "apps":
		listTenantApps()
	case "roles":
		listTenantRoles()
	default:
		fmt.Printf("unknown tenant command: %s\n", subCmd)
	}
}

// Auth commands

func startLogin() {
	resp, err := http.Get(getAPIURL() + "/auth/login")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	loginURL, ok := result["loginUrl"].(string)
	if !ok {
		fmt.Printf("✗ Login failed: %v\n", result)
		return
	}

	fmt.Println("Open this URL in a browser and sign in:")
	fmt.Println()
	fmt.Println("  " + loginURL)
	fmt.Println()
	fmt.Println("Then save the returned session token with:")
	fmt.Println("  entrasecure auth token <token>")
}

func saveTokenFromArgs(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: entrasecure auth token <session-token>")
		return
	}
	if err := saveToken(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("✓ Token saved")
}

func logout() {
	req, _ := http.NewRequest("POST", getAPIURL()+"/auth/logout", nil)
	addAuthHeader(req)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		resp.Body.Close()
	}
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	var identity map[string]interface{}
	if !doGet("/me", &identity) {
		return
	}

	profile, _ := identity["profile"].(map[string]interface{})
	if blocked, _ := identity["blocked"].(bool); blocked {
		fmt.Println("Signed in, but the directory denied profile reads (missing Graph permissions)")
		return
	}
	fmt.Printf("✓ %v (%v)\n", profile["displayName"], profile["userPrincipalName"])

	if groups, ok := identity["groups"].([]interface{}); ok {
		fmt.Printf("  Groups: %d\n", len(groups))
	}
	if roles, ok := identity["directoryRoles"].([]interface{}); ok {
		fmt.Printf("  Directory roles: %d\n", len(roles))
	}
}

// Overview rendering

func printOverviewSummary(overview map[string]interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if tenant, ok := overview["tenantInfo"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Tenant\t%v (%v)\n", tenant["displayName"], tenant["primaryDomain"])
	}
	if totals, ok := overview["totals"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Totals\t%v users, %v groups, %v apps, %v directory roles\n",
			totals["users"], totals["groups"], totals["apps"], totals["directoryRoles"])
	}
	if identity, ok := overview["identity"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Identity\t%v members, %v guests, %v disabled\n",
			identity["members"], identity["guests"], identity["disabled"])
	}
	if creds, ok := overview["credentials"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Credentials\t%v expired, %v expiring within %v days\n",
			creds["expired"], creds["expiringSoon"], creds["withinDays"])
	}
	if priv, ok := overview["privileged"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Privileged\t%v assignments across %v high-impact roles\n",
			priv["assignments"], priv["highImpactRolesCount"])
	}
	if ownerless, ok := overview["groupsWithoutOwners"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Ownerless groups\t%v\n", ownerless["count"])
	}
	if ownerless, ok := overview["appsWithoutOwners"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Ownerless apps\t%v\n", ownerless["count"])
	}
	if capacity, ok := overview["capacity"].(map[string]interface{}); ok {
		if vol, ok := capacity["identityVolume"].(map[string]interface{}); ok {
			fmt.Fprintf(w, "Identity volume\t%v (%v%%)\n", vol["label"], vol["pct"])
		}
		if fp, ok := capacity["appFootprint"].(map[string]interface{}); ok {
			fmt.Fprintf(w, "App footprint\t%v (%v%%)\n", fp["label"], fp["pct"])
		}
		if pc, ok := capacity["privilegedConcentration"].(map[string]interface{}); ok {
			fmt.Fprintf(w, "Privileged concentration\t%v (%v%%)\n", pc["label"], pc["pct"])
		}
	}
	fmt.Fprintf(w, "Generated\t%v\n", overview["generatedAt"])
	w.Flush()
}

// Tenant listings

func listTenantUsers(args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	top := fs.Int("top", 0, "limit the listing to the first N users")
	fs.Parse(args)

	path := "/tenant/users"
	if *top > 0 {
		path = fmt.Sprintf("%s?top=%d", path, *top)
	}

	var users []map[string]interface{}
	if !doGet(path, &users) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISPLAY NAME\tUPN\tTYPE\tENABLED")
	for _, u := range users {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n",
			u["displayName"], u["userPrincipalName"], u["userType"], u["accountEnabled"])
	}
	w.Flush()
}

func listTenantGroups(args []string) {
	fs := flag.NewFlagSet("groups", flag.ExitOnError)
	top := fs.Int("top", 0, "limit the listing to the first N groups")
	fs.Parse(args)

	path := "/tenant/groups"
	if *top > 0 {
		path = fmt.Sprintf("%s?top=%d", path, *top)
	}

	var groups []map[string]interface{}
	if !doGet(path, &groups) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISPLAY NAME\tID\tSECURITY")
	for _, g := range groups {
		fmt.Fprintf(w, "%v\t%v\t%v\n", g["displayName"], g["id"], g["securityEnabled"])
	}
	w.Flush()
}

func listTenantApps() {
	var apps []map[string]interface{}
	if !doGet("/tenant/apps", &apps) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISPLAY NAME\tAPP ID")
	for _, a := range apps {
		fmt.Fprintf(w, "%v\t%v\n", a["displayName"], a["appId"])
	}
	w.Flush()
}

func listTenantRoles() {
	var roles []map[string]interface{}
	if !doGet("/tenant/roles", &roles) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISPLAY NAME\tID")
	for _, r := range roles {
		fmt.Fprintf(w, "%v\t%v\n", r["displayName"], r["id"])
	}
	w.Flush()
}

func listAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("limit", 50, "number of audit events to show")
	fs.Parse(args)

	var events []map[string]interface{}
	if !doGet(fmt.Sprintf("/audit?limit=%d", *limit), &events) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tACTOR\tACTION\tRESOURCE\tSTATUS")
	for _, e := range events {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
			e["occurredAt"], e["actorId"], e["action"], e["resource"], e["status"])
	}
	w.Flush()
}

// Helper functions

func doGet(path string, out interface{}) bool {
	req, _ := http.NewRequest("GET", getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, result["error"])
		return false
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	return true
}

func getAPIURL() string {
	if url := os.Getenv("ENTRASECURE_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.entrasecure/token"
}

func saveToken(token string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home+"/.entrasecure", 0700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`EntraSecure CLI

Usage:
  entrasecure <command> [options]

Commands:
  auth       Session management (login, token, logout)
  overview   Tenant security overview (-cached, -json)
  tenant     Directory listings (users, groups, apps, roles)
  audit      Recent audit events (tenant admin)
  me         Show the signed-in identity
  help       Show this help message

Environment Variables:
  ENTRASECURE_API    API endpoint (default: http://localhost:8080/api)

Examples:
  entrasecure auth login
  entrasecure auth token eyJhbGciOi...
  entrasecure overview -cached
  entrasecure tenant users -top 25
`)
}
