// Package notifier delivers new-item notifications.
//
// Email is the primary channel. Telegram and Twitter can be enabled in addition,
// and Multi fans one notification out to every configured channel. The caller hands
// over items already deduplicated and sorted.
package notifier
