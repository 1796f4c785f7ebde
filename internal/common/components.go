package common

const (
	ComponentDownloader   = "downloader"
	ComponentLogFetcher   = "log-fetcher"
	ComponentSyncManager  = "sync-manager"
	ComponentCoordinator  = "indexer-coordinator"
	ComponentEventDecoder = "event-decoder"
	ComponentNotification = "notification"
	ComponentNodeSync     = "node-sync"
	ComponentRPC          = "rpc"
	ComponentAPI          = "api"
	ComponentMaintenance  = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentDownloader:   {},
	ComponentLogFetcher:   {},
	ComponentSyncManager:  {},
	ComponentCoordinator:  {},
	ComponentEventDecoder: {},
	ComponentNotification: {},
	ComponentNodeSync:     {},
	ComponentRPC:          {},
	ComponentAPI:          {},
	ComponentMaintenance:  {},
}
