package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/academyportal/internal/client"
	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/portal"
	"github.com/aryan0dhankhar/academyportal/internal/security"
	"github.com/aryan0dhankhar/academyportal/internal/session"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "areas":
		listAreas(args)
	case "landing":
		showLanding(args)
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
		fmt.Println("Usage: academyportal auth <login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := apiClient().Login(ctx, *email, *password)
	if err != nil {
		fmt.Printf("✗ Login failed: %s\n", failureMessage(err))
		os.Exit(1)
	}
	if res.User == nil {
		fmt.Println("✗ Login failed: identity api returned no user")
		os.Exit(1)
	}

	store := credentialStore()
	if err := store.Save(session.Record{Token: res.Token, Identity: res.User, CreatedAt: time.Now()}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Logged in as: %s (%s)\n", res.User.Email, res.User.Role)
	fmt.Printf("  Landing: %s\n", portal.LandingPath(res.User.Role))
}

func logoutUser() {
	if err := credentialStore().Clear(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	store := credentialStore()
	rec, err := store.Load()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Println("Not logged in")
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	identity, err := apiClient().Me(ctx, rec.Token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			store.Clear()
			fmt.Println("✗ Session expired, log in again")
			os.Exit(1)
		}
		fmt.Printf("Error: %s\n", failureMessage(err))
		os.Exit(1)
	}
	if !identity.IsActive {
		store.Clear()
		fmt.Println("✗ Account inactive")
		os.Exit(1)
	}

	rec.Identity = identity
	if err := store.Save(*rec); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", identity.ID)
	fmt.Fprintf(w, "NAME\t%s\n", identity.Name)
	fmt.Fprintf(w, "EMAIL\t%s\n", identity.Email)
	fmt.Fprintf(w, "ROLE\t%s\n", identity.Role)
	fmt.Fprintf(w, "TENANT\t%s\n", identity.TenantID)
	fmt.Fprintf(w, "LANDING\t%s\n", portal.LandingPath(identity.Role))
	w.Flush()
}

// Area commands
func listAreas(args []string) {
	fs := flag.NewFlagSet("areas", flag.ExitOnError)
	role := fs.String("role", "", "role to check (default: logged in user)")
	fs.Parse(args)

	if *role == "" {
		*role = storedRole()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AREA\tPATH\tACCESS")
	for _, route := range portal.AreaRoutes {
		access := "denied"
		if security.Allows(route.Area, *role) {
			access = "allowed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", route.Area, route.Prefix, access)
	}
	w.Flush()
}

func showLanding(args []string) {
	fs := flag.NewFlagSet("landing", flag.ExitOnError)
	role := fs.String("role", "", "role to dispatch (default: logged in user)")
	fs.Parse(args)

	if *role == "" {
		*role = storedRole()
	}
	fmt.Println(portal.LandingPath(*role))
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("ACADEMYPORTAL_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func apiClient() *client.IdentityClient {
	return client.NewIdentityClient(getAPIURL(), nil)
}

func credentialStore() *session.FileStore {
	path, err := session.DefaultFilePath()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return session.NewFileStore(path)
}

func storedRole() string {
	rec, err := credentialStore().Load()
	if err != nil || rec.Identity == nil {
		fmt.Println("Error: not logged in, pass -role")
		os.Exit(1)
	}
	return rec.Identity.Role
}

func failureMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func printUsage() {
	fmt.Print(`Academy Portal CLI

Usage:
  academyportal <command> [options]

Commands:
  auth       Authentication (login, logout, who)
  areas      Show which dashboard areas a role may enter
  landing    Print the landing path for a role
  help       Show this help message

Environment Variables:
  ACADEMYPORTAL_API    API endpoint (default: http://localhost:8080/api)

Examples:
  academyportal auth login -email ana@academia.com -password pass
  academyportal auth who
  academyportal areas -role FUNCIONARIO
  academyportal landing -role ALUNO_FUTEBOL
`)
}
