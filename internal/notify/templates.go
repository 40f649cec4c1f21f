package notify

import (
	"strings"

	"hostbot/internal/model"

	"golang.org/x/text/language"
)

// Templates holds the message texts of one locale. Texts use {placeholder}
// variables; see Render.
type Templates struct {
	Lang        language.Tag
	StatusNames map[model.OrderStatus]string
	NoteLine    string

	OrderCreatedCustomer  string
	OrderCreatedAdmin     string
	StatusCustomer        map[model.OrderStatus]string
	StatusAdmin           string
	ProvisionedCustomer   string
	ReusedCustomer        string
	ProvisionedAdmin      string
	FailedCustomer        string
	FailedSupportCustomer string
	FailedAdmin           string
	RateLimited           string

	Replies Replies
}

var english = Templates{
	Lang:     language.English,
	NoteLine: "\nNote: {note}",
	OrderCreatedCustomer: "Thank you {name}! Your order {order_id} has been received.\n" +
		"Package: {package} ({duration} month(s))\n" +
		"Total: {total}\n" +
		"Status: {status}\n\n" +
		"We will confirm your order once payment is received. Check progress with: status {order_id}",
	OrderCreatedAdmin: "New order {order_id}\n" +
		"Customer: {name} ({phone})\n" +
		"Package: {package} x {duration} month(s)\n" +
		"Total: {total}\n\n" +
		"Confirm with: confirm {order_id}",
	StatusCustomer: map[model.OrderStatus]string{
		model.StatusConfirmed:  "Payment for order {order_id} is confirmed. Your server is being prepared.{note_line}",
		model.StatusProcessing: "Order {order_id} is being processed.{note_line}",
		model.StatusCompleted:  "Order {order_id} is complete. Enjoy your server!{note_line}",
		model.StatusCancelled:  "Order {order_id} has been cancelled.{note_line}",
		model.StatusRefunded:   "Order {order_id} has been refunded.{note_line}",
	},
	StatusAdmin: "Order {order_id}: {from} -> {status} by {actor}{note_line}",
	ProvisionedCustomer: "Your server for order {order_id} is ready!\n" +
		"Panel: {panel_url}\n" +
		"Username: {username}\n" +
		"Password: {password}\n" +
		"Server ID: {server_id}\n\n" +
		"Please change your password after the first login.",
	ReusedCustomer:   "Your server for order {order_id} is ready.\nPanel: {panel_url}\nServer ID: {server_id}",
	ProvisionedAdmin: "Order {order_id} provisioned: server {server_id} for {name} ({phone})",
	FailedCustomer: "Payment for order {order_id} is confirmed. Setting up your server is taking longer " +
		"than expected; we are retrying and will message you once it is ready.",
	FailedSupportCustomer: "Payment for order {order_id} is confirmed, but we could not set up your server " +
		"automatically. Please contact support and mention your order ID.",
	FailedAdmin: "Provisioning failed for {order_id} [{reason}]: {error}{compensation}\n" +
		"Retry with: retry {order_id}",
	RateLimited: "You are sending messages too quickly. Please wait {minutes} minute(s) and try again.",
	Replies:     englishReplies,
}

var indonesian = Templates{
	Lang: language.Indonesian,
	StatusNames: map[model.OrderStatus]string{
		model.StatusPending:    "menunggu pembayaran",
		model.StatusConfirmed:  "dikonfirmasi",
		model.StatusProcessing: "diproses",
		model.StatusCompleted:  "selesai",
		model.StatusCancelled:  "dibatalkan",
		model.StatusRefunded:   "dikembalikan",
	},
	NoteLine: "\nCatatan: {note}",
	OrderCreatedCustomer: "Terima kasih {name}! Pesanan {order_id} sudah kami terima.\n" +
		"Paket: {package} ({duration} bulan)\n" +
		"Total: {total}\n" +
		"Status: {status}\n\n" +
		"Pesanan akan dikonfirmasi setelah pembayaran diterima. Cek progres dengan: status {order_id}",
	OrderCreatedAdmin: "Pesanan baru {order_id}\n" +
		"Pelanggan: {name} ({phone})\n" +
		"Paket: {package} x {duration} bulan\n" +
		"Total: {total}\n\n" +
		"Konfirmasi dengan: confirm {order_id}",
	StatusCustomer: map[model.OrderStatus]string{
		model.StatusConfirmed:  "Pembayaran pesanan {order_id} sudah dikonfirmasi. Server kamu sedang disiapkan.{note_line}",
		model.StatusProcessing: "Pesanan {order_id} sedang diproses.{note_line}",
		model.StatusCompleted:  "Pesanan {order_id} sudah selesai. Selamat menggunakan server kamu!{note_line}",
		model.StatusCancelled:  "Pesanan {order_id} dibatalkan.{note_line}",
		model.StatusRefunded:   "Dana pesanan {order_id} sudah dikembalikan.{note_line}",
	},
	StatusAdmin: "Pesanan {order_id}: {from} -> {status} oleh {actor}{note_line}",
	ProvisionedCustomer: "Server untuk pesanan {order_id} sudah siap!\n" +
		"Panel: {panel_url}\n" +
		"Username: {username}\n" +
		"Password: {password}\n" +
		"Server ID: {server_id}\n\n" +
		"Segera ganti password setelah login pertama.",
	ReusedCustomer:   "Server untuk pesanan {order_id} sudah siap.\nPanel: {panel_url}\nServer ID: {server_id}",
	ProvisionedAdmin: "Pesanan {order_id} sudah diprovision: server {server_id} untuk {name} ({phone})",
	FailedCustomer: "Pembayaran pesanan {order_id} sudah dikonfirmasi. Pembuatan server butuh waktu lebih lama " +
		"dari biasanya; kami sedang mencoba lagi dan akan mengabari kamu setelah server siap.",
	FailedSupportCustomer: "Pembayaran pesanan {order_id} sudah dikonfirmasi, tetapi server belum bisa dibuat " +
		"otomatis. Silakan hubungi support dan sebutkan nomor pesanan kamu.",
	FailedAdmin: "Provisioning gagal untuk {order_id} [{reason}]: {error}{compensation}\n" +
		"Ulangi dengan: retry {order_id}",
	RateLimited: "Pesan kamu terlalu cepat. Tunggu {minutes} menit lalu coba lagi.",
	Replies:     indonesianReplies,
}

// TemplatesFor returns the templates of locale, falling back to English.
func TemplatesFor(locale string) Templates {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "id", "id-id", "in":
		return indonesian
	default:
		return english
	}
}

// StatusName returns the display name of s in this locale.
func (t Templates) StatusName(s model.OrderStatus) string {
	if name, ok := t.StatusNames[s]; ok {
		return name
	}
	return string(s)
}

// Note renders the optional note suffix of a status message.
func (t Templates) Note(note string) string {
	if note = strings.TrimSpace(note); note == "" {
		return ""
	}
	return Render(t.NoteLine, map[string]string{"note": note})
}

// Render replaces each {key} in tmpl with vars[key]. Unknown placeholders
// are left as they are.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
