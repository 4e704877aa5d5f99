// Package gmail implements mailbox.Provider on top of the Gmail API.
//
// Messages are searched page by page and fetched one at a time in full
// format. Outgoing mail is submitted as raw RFC 5322 bytes. EmailAddress
// looks up the account's own address. All calls are made for the
// authenticated user ("me").
//
// Example usage:
//
//	httpClient, err := creds.HTTPClient(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, metrics, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//	page, err := client.ListPage(ctx, "newer_than:1y", "")
package gmail
