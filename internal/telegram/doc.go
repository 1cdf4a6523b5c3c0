// Package telegram sends new-item notifications through the Telegram Bot API.
//
// Authentication requires a bot token (from @BotFather) and the chat ID that should
// receive the messages.
package telegram
