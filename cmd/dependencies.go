package main

import (
	"context"
	"fmt"

	"github.com/bdmouza/mouzadrive/internal/controllers"
	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/managers"
	"github.com/bdmouza/mouzadrive/internal/storage/postgres"
	"github.com/bdmouza/mouzadrive/internal/storage/rediscache"
	"github.com/bdmouza/mouzadrive/pkg/drivestore"
	"github.com/bdmouza/mouzadrive/pkg/gateways/bkash"
	"github.com/bdmouza/mouzadrive/pkg/gateways/eps"
	"github.com/bdmouza/mouzadrive/pkg/gateways/uddoktapay"
	"github.com/bdmouza/mouzadrive/pkg/mailer"

	"github.com/rs/zerolog/log"
)

// AppDependencies contains everything the HTTP server needs.
type AppDependencies struct {
	Store *postgres.Store
	Cache *rediscache.Cache

	DriveController   *controllers.DriveController
	PaymentController *controllers.PaymentController
	PackageController *controllers.PackageController

	PackageManager *managers.PackageManager
}

// BuildAppDependencies creates and wires up all service dependencies
func BuildAppDependencies(ctx context.Context, config *Config) (*AppDependencies, error) {
	log.Info().Msg("Building service dependencies")

	store, err := postgres.NewStore(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	cache, err := rediscache.New(ctx, rediscache.Config{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	driveStore, err := drivestore.NewStore(ctx, drivestore.StoreDependencies{
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("creating drive store: %w", err)
	}

	callbackURL := config.CallbackBase + "/api/payment/eps/callback"

	gateway, err := eps.NewClient(eps.ClientDependencies{
		Config: eps.Config{
			BaseURL:    config.EPSBaseURL,
			Username:   config.EPSUsername,
			Password:   config.EPSPassword,
			HashKey:    config.EPSHashKey,
			StoreID:    config.EPSStoreID,
			SuccessURL: callbackURL,
			FailURL:    callbackURL,
			CancelURL:  callbackURL,
		},
		Cache: cache,
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment gateway: %w", err)
	}

	altGateways := map[domain.PaymentMethod]domain.PaymentGateway{}

	if config.BkashAppKey != "" {
		bkashClient, err := bkash.NewClient(bkash.ClientDependencies{
			Config: bkash.Config{
				AppKey:      config.BkashAppKey,
				AppSecret:   config.BkashAppSecret,
				Username:    config.BkashUsername,
				Password:    config.BkashPassword,
				Sandbox:     !config.BkashLiveMode,
				CallbackURL: callbackURL,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating bkash gateway: %w", err)
		}

		altGateways[domain.PaymentMethodBkash] = bkash.NewGateway(bkash.GatewayDependencies{
			Client: bkashClient,
			Cache:  cache,
		})
	}

	if config.UddoktapayAPIKey != "" {
		uddoktapayClient, err := uddoktapay.NewClient(uddoktapay.ClientDependencies{
			Config: uddoktapay.Config{
				APIKey:      config.UddoktapayAPIKey,
				BaseURL:     config.UddoktapayBaseURL,
				RedirectURL: config.FrontendURL + "/purchase/success",
				CancelURL:   config.FrontendURL + "/purchase/cancelled",
				WebhookURL:  callbackURL,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating uddoktapay gateway: %w", err)
		}

		altGateways[domain.PaymentMethodUddoktapay] = uddoktapay.NewGateway(uddoktapayClient)
	}

	var receiptMailer domain.Mailer
	if config.ResendAPIKey != "" {
		receiptMailer, err = mailer.New(mailer.Config{
			APIKey: config.ResendAPIKey,
			From:   config.MailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("creating mailer: %w", err)
		}
	}

	transactions := store.Transactions()
	purchases := store.Purchases()
	packages := store.Packages()
	subscriptions := store.Subscriptions()
	webhookLogs := store.WebhookLogs()

	driveIndex := managers.NewDriveIndex(managers.DriveIndexDependencies{
		Store:      driveStore,
		RootFolder: config.DriveRootFolder,
	})

	fileSearch := managers.NewFileSearch(managers.FileSearchDependencies{
		Store: driveStore,
		Index: driveIndex,
		Cache: cache,
	})

	compressor := managers.NewImageCompressor()

	ledger := managers.NewLedger(managers.LedgerDependencies{
		Transactions: transactions,
		Gateway:      gateway,
		Gateways:     altGateways,
	})

	checkout := managers.NewCheckout(managers.CheckoutDependencies{
		Purchases: purchases,
		Ledger:    ledger,
		Gateway:   gateway,
		Gateways:  altGateways,
	})

	packageManager := managers.NewPackageManager(managers.PackageManagerDependencies{
		Packages:      packages,
		Subscriptions: subscriptions,
		Purchases:     purchases,
		Ledger:        ledger,
		Gateway:       gateway,
		Gateways:      altGateways,
	})

	reconciler := managers.NewReconciler(managers.ReconcilerDependencies{
		Ledger:        ledger,
		Transactions:  transactions,
		Purchases:     purchases,
		Subscriptions: subscriptions,
		WebhookLogs:   webhookLogs,
		Resolvers: []managers.OrderResolver{
			&managers.TrxNumberResolver{Purchases: purchases, Subscriptions: subscriptions},
			&managers.OrderIDResolver{},
			&managers.HeuristicResolver{Purchases: purchases},
		},
		Store:          driveStore,
		Mailer:         receiptMailer,
		FrontendURL:    config.FrontendURL,
		SharedFolderID: config.DriveSharedFolderID,
	})

	driveController := controllers.NewDriveController(controllers.DriveControllerDependencies{
		Index:      driveIndex,
		Search:     fileSearch,
		Compressor: compressor,
		Store:      driveStore,
		Checkout:   checkout,
	})

	paymentController := controllers.NewPaymentController(controllers.PaymentControllerDependencies{
		Checkout:   checkout,
		Ledger:     ledger,
		Reconciler: reconciler,
	})

	packageController := controllers.NewPackageController(controllers.PackageControllerDependencies{
		Packages: packageManager,
	})

	log.Info().Msg("Service dependencies built successfully")

	return &AppDependencies{
		Store:             store,
		Cache:             cache,
		DriveController:   driveController,
		PaymentController: paymentController,
		PackageController: packageController,
		PackageManager:    packageManager,
	}, nil
}

// Close releases the shared resources behind the dependency graph.
func (d *AppDependencies) Close() {
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache connection")
		}
	}
	if d.Store != nil {
		d.Store.Close()
	}
}
