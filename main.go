package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable detailed debug logging")
	showBrowser := flag.Bool("show-browser", false, "Run the browser with a visible window")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *debug {
		config.DebugMode = true
	}
	if *showBrowser {
		config.Headless = false
	}

	pool, err := NewCredentialPool(config)
	if err != nil {
		log.Fatalf("Failed to build credential pool: %v", err)
	}

	fs := afero.NewOsFs()

	diag, err := NewFileDiagnostics(fs, config.ScreenshotDir, config.LogFile, config.DebugMode)
	if err != nil {
		log.Fatalf("Failed to initialize diagnostics: %v", err)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                  Warden Session Refresh                   ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Session file:  %s\n", config.CookieFile)
	fmt.Printf("Account pool:  %d enabled\n", pool.Size())
	fmt.Printf("Run ID:        %s\n", diag.RunID())
	fmt.Println()

	driver := NewLoginDriver(config, diag)
	if err := driver.Start(); err != nil {
		diag.Error("Browser startup failed", "error", err.Error())
		os.Exit(1)
	}
	defer driver.Close()

	store := NewSessionStore(fs, config.CookieFile)
	controller := NewRotationController(pool, driver, store, diag, config)

	result, err := controller.Run()
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			diag.Error("Session refresh failed: every account was exhausted")
			fmt.Println()
			fmt.Println("✗ No account produced a valid session. Likely causes:")
			fmt.Println("  • wrong password or deleted account (credential error)")
			fmt.Println("  • the provider flagged the automation (detection / captcha)")
			fmt.Println("  • 2FA or an identity check is enabled on the account")
			fmt.Println()
			fmt.Printf("The previous session file was left untouched. Check the log and\nscreenshots under %s for details.\n", config.ScreenshotDir)
			os.Exit(1)
		}

		diag.Error("Session refresh failed", "error", err.Error())
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("✓ Session refreshed using %s (%d cookies persisted)\n", result.Account, result.Persisted)
}
