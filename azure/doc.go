// Package azure implements stash.Service on Azure Blob Storage.
//
// A Config selects how to authenticate (shared key, SAS token, bearer token,
// connection string or anonymous) and where the account lives (public cloud,
// China cloud, the Azurite emulator or a custom URI):
//
//	svc, err := azure.New(azure.Config{
//	    Container: "stash",
//	    Credentials: azure.Credentials{
//	        Kind:      azure.CredentialAccessKey,
//	        Account:   "myaccount",
//	        AccessKey: os.Getenv("AZURE_STORAGE_KEY"),
//	    },
//	    Location: azure.Location{Kind: azure.LocationPublic, Account: "myaccount"},
//	})
//
// Blob paths are reported as "azure://<container>/<name>".
package azure
