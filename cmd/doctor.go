package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/cliconfig"
	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/gateway"
	versioncheck "github.com/safedrain/sd/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Run diagnostic checks for the sync setup",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		runDoctor(cmd.Context())
		return nil
	},
}

func runDoctor(ctx context.Context) {
	// 1. Auth config
	auth, err := cliconfig.LoadAuth()
	authOK := err == nil && auth != nil && auth.APIKey != ""
	if authOK {
		fmt.Printf("Auth config ............ OK (%s)\n", auth.UserID)
	} else if err != nil {
		fmt.Printf("Auth config ............ FAIL (%v)\n", err)
	} else {
		fmt.Printf("Auth config ............ FAIL (no API key stored)\n")
	}

	// 2. Server reachable. healthz needs no auth.
	serverURL := cliconfig.ServerURL()
	deviceID, _ := cliconfig.DeviceID()
	client := gateway.New(serverURL, cliconfig.APIKey(), deviceID)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err = client.HealthCheck(probeCtx)
	serverOK := err == nil
	if serverOK {
		fmt.Printf("Server reachable ....... OK (%s)\n", serverURL)
	} else {
		fmt.Printf("Server reachable ....... FAIL (%v)\n", err)
	}

	// 3. Auth valid
	if !authOK || !serverOK {
		fmt.Printf("Auth valid ............. SKIP\n")
	} else {
		_, err = client.List(probeCtx, gateway.CollectionReports, gateway.Query{Limit: 1})
		if err == nil {
			fmt.Printf("Auth valid ............. OK\n")
		} else if errors.Is(err, gateway.ErrUnauthorized) {
			fmt.Printf("Auth valid ............. FAIL (invalid or expired API key)\n")
		} else {
			fmt.Printf("Auth valid ............. FAIL (%v)\n", err)
		}
	}

	// 4. Local queue
	store, err := db.Open(getBaseDir())
	dbOK := err == nil
	if dbOK {
		defer store.Close()
		fmt.Printf("Local queue ............ OK\n")
	} else if errors.Is(err, db.ErrStorageUnavailable) {
		fmt.Printf("Local queue ............ WARN (not initialized, run 'sd init')\n")
	} else {
		fmt.Printf("Local queue ............ FAIL (%v)\n", err)
	}

	// 5. Pending operations
	if !dbOK {
		fmt.Printf("Pending operations ..... SKIP\n")
	} else {
		count, err := store.CountUnsynced()
		if err != nil {
			fmt.Printf("Pending operations ..... FAIL (%v)\n", err)
		} else {
			fmt.Printf("Pending operations ..... %d\n", count)
		}
		dead, err := store.CountDead()
		if err != nil {
			fmt.Printf("Dead operations ........ FAIL (%v)\n", err)
		} else if dead > 0 {
			fmt.Printf("Dead operations ........ WARN (%d, run 'sd queue retry')\n", dead)
		} else {
			fmt.Printf("Dead operations ........ 0\n")
		}
	}

	// 6. Client version
	if versioncheck.IsDevelopmentVersion(version) {
		fmt.Printf("Client version ......... %s (dev build, check skipped)\n", version)
	} else if res := versioncheck.CheckCached(version); res.Error != nil {
		fmt.Printf("Client version ......... WARN (check failed: %v)\n", res.Error)
	} else if res.HasUpdate {
		fmt.Printf("Client version ......... WARN (%s available, current %s)\n", res.LatestVersion, version)
		if cmd := versioncheck.UpdateCommand(res.LatestVersion); cmd != "" {
			fmt.Printf("  update: %s\n", cmd)
		}
	} else {
		fmt.Printf("Client version ......... OK (%s)\n", version)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
