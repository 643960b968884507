package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pestofarm/storefront/internal/domain"
)

// backendTime accepts the zone-less LocalDateTime strings the backend emits,
// RFC3339 and epoch milliseconds
type backendTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *backendTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return nil
		}
		*t = backendTime(time.UnixMilli(ms).UTC())
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = backendTime(parsed)
			return nil
		}
	}
	// unparseable dates are dropped, not fatal
	return nil
}

func (t backendTime) Time() time.Time { return time.Time(t) }

// flexID accepts numeric or string identifiers
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	*id = flexID(string(b))
	return nil
}

type sizeDTO struct {
	Label    string          `json:"label"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

type productDTO struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	MrpPrice     decimal.Decimal `json:"mrpPrice"`
	Images       []string        `json:"images"`
	ImageURL     string          `json:"imageUrl"`
	Sizes        json.RawMessage `json:"sizes"`
}

func (p productDTO) toDomain() domain.Product {
	out := domain.Product{
		ID:     p.ID,
		Name:   firstNonEmpty(p.Name, p.Title),
		Images: p.Images,
	}
	if len(out.Images) == 0 && p.ImageURL != "" {
		out.Images = []string{p.ImageURL}
	}

	switch {
	case !p.CurrentPrice.IsZero():
		out.CurrentPrice = p.CurrentPrice
	case !p.SellingPrice.IsZero():
		out.CurrentPrice = p.SellingPrice
	default:
		out.CurrentPrice = p.MrpPrice
	}

	out.Sizes = p.sizes()
	return out
}

// sizes decodes either a structured size table or the backend's plain label
// list ("250ml,500ml" or ["250ml","500ml"]). Label-only sizes take the
// product's mrp/selling prices.
func (p productDTO) sizes() []domain.SizeVariant {
	raw := bytes.TrimSpace(p.Sizes)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var structured []sizeDTO
	if err := json.Unmarshal(raw, &structured); err == nil && len(structured) > 0 && structured[0].Label != "" {
		out := make([]domain.SizeVariant, 0, len(structured))
		for _, s := range structured {
			out = append(out, domain.SizeVariant{Label: s.Label, Price: s.Price, Discount: s.Discount})
		}
		return out
	}

	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		labels = strings.Split(joined, ",")
	}

	price := p.MrpPrice
	if price.IsZero() {
		price = p.CurrentPrice
	}
	if price.IsZero() {
		price = p.SellingPrice
	}
	discount := decimal.Zero
	if !p.SellingPrice.IsZero() && p.SellingPrice.LessThan(price) {
		discount = price.Sub(p.SellingPrice)
	}

	out := make([]domain.SizeVariant, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, domain.SizeVariant{Label: l, Price: price, Discount: discount})
	}
	return out
}

type cartItemDTO struct {
	ID       int64      `json:"id"`
	Product  productDTO `json:"product"`
	Size     string     `json:"size"`
	Quantity int        `json:"quantity"`
}

func (ci cartItemDTO) toDomain() domain.CartItem {
	product := ci.Product.toDomain()
	size := ci.Size
	if size == "" {
		size = product.DefaultSizeLabel()
	}
	return domain.CartItem{
		RemoteID:     ci.ID,
		Product:      product,
		Quantity:     ci.Quantity,
		SelectedSize: size,
	}
}

type cartDTO struct {
	ID        int64         `json:"id"`
	CartItems []cartItemDTO `json:"cartItems"`
	Items     []cartItemDTO `json:"items"`
}

func (c cartDTO) toDomain() []domain.CartItem {
	src := c.CartItems
	if len(src) == 0 {
		src = c.Items
	}
	out := make([]domain.CartItem, 0, len(src))
	for _, ci := range src {
		out = append(out, ci.toDomain())
	}
	return out
}

type orderItemDTO struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"productId"`
	Product      *productDTO     `json:"product"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	MrpPrice     decimal.Decimal `json:"mrpPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

func (oi orderItemDTO) toDomain() domain.OrderItem {
	out := domain.OrderItem{
		ID:           oi.ID,
		ProductID:    oi.ProductID,
		Size:         oi.Size,
		Quantity:     oi.Quantity,
		MrpPrice:     oi.MrpPrice,
		SellingPrice: oi.SellingPrice,
	}
	if oi.Product != nil {
		if out.ProductID == 0 {
			out.ProductID = oi.Product.ID
		}
		out.Name = firstNonEmpty(oi.Product.Name, oi.Product.Title)
	}
	return out
}

type addressDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Street  string `json:"street"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	PinCode string `json:"pinCode"`
}

func (a addressDTO) toDomain() domain.ShippingInfo {
	return domain.ShippingInfo{
		ID:     a.ID,
		Name:   a.Name,
		Phone:  firstNonEmpty(a.Phone, a.Mobile),
		Street: firstNonEmpty(a.Street, a.Address),
		City:   a.City,
		State:  a.State,
		Zip:    firstNonEmpty(a.Zip, a.PinCode),
	}
}

type paymentDTO struct {
	Method        string `json:"method"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

type orderDTO struct {
	ID                   int64           `json:"id"`
	OrderID              string          `json:"orderId"`
	OrderItems           []orderItemDTO  `json:"orderItems"`
	ShippingAddress      *addressDTO     `json:"shippingAddress"`
	PaymentDetails       *paymentDTO     `json:"paymentDetails"`
	TotalMrpPrice        decimal.Decimal `json:"totalMrpPrice"`
	TotalPrice           decimal.Decimal `json:"totalPrice"`
	TotalSellingPrice    decimal.Decimal `json:"totalSellingPrice"`
	TotalDiscountedPrice decimal.Decimal `json:"totalDiscountedPrice"`
	Taxes                decimal.Decimal `json:"taxes"`
	DeliveryCharges      decimal.Decimal `json:"deliveryCharges"`
	Total                decimal.Decimal `json:"total"`
	OrderStatus          string          `json:"orderStatus"`
	TotalItem            int             `json:"totalItem"`
	PaymentStatus        string          `json:"paymentStatus"`
	OrderDate            backendTime     `json:"orderDate"`
	DeliveryDate         backendTime     `json:"deliveryDate"`
	PaymentLinkURL       string          `json:"payment_link_url"`
	PaymentLinkID        string          `json:"payment_link_id"`
}

// toDomain maps a backend order. Fields the backend omitted stay zero; the
// order service fills the ones it needs.
func (o orderDTO) toDomain() domain.Order {
	out := domain.Order{
		ID:                o.ID,
		OrderID:           o.OrderID,
		TotalMrpPrice:     o.TotalMrpPrice,
		TotalSellingPrice: o.TotalSellingPrice,
		Taxes:             o.Taxes,
		DeliveryCharges:   o.DeliveryCharges,
		Total:             o.Total,
		TotalItem:         o.TotalItem,
		PaymentStatus:     o.PaymentStatus,
		OrderDate:         o.OrderDate.Time(),
		DeliveryDate:      o.DeliveryDate.Time(),
	}
	if out.TotalMrpPrice.IsZero() {
		out.TotalMrpPrice = o.TotalPrice
	}
	if out.TotalSellingPrice.IsZero() {
		out.TotalSellingPrice = o.TotalDiscountedPrice
	}
	if o.OrderStatus != "" {
		out.Status = domain.ParseOrderStatus(o.OrderStatus)
	}
	for _, oi := range o.OrderItems {
		out.Items = append(out.Items, oi.toDomain())
	}
	if o.ShippingAddress != nil {
		out.ShippingAddress = o.ShippingAddress.toDomain()
	}
	if o.PaymentDetails != nil {
		method := strings.ToLower(firstNonEmpty(o.PaymentDetails.Method, o.PaymentDetails.PaymentMethod))
		out.PaymentDetails = domain.PaymentInfo{
			Method:        domain.PaymentMethod(method),
			TransactionID: firstNonEmpty(o.PaymentDetails.TransactionID, o.PaymentDetails.PaymentID),
			Status:        o.PaymentDetails.Status,
		}
	}
	out.PaymentDetails.PaymentLinkURL = o.PaymentLinkURL
	if out.PaymentDetails.TransactionID == "" {
		out.PaymentDetails.TransactionID = o.PaymentLinkID
	}
	return out
}

type profileDTO struct {
	ID       int64  `json:"id"`
	Fullname string `json:"fullname"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (p profileDTO) toDomain() domain.Profile {
	return domain.Profile{
		ID:       p.ID,
		FullName: firstNonEmpty(p.FullName, p.Fullname),
		Email:    p.Email,
		Mobile:   firstNonEmpty(p.Mobile, p.Phone),
		Address:  p.Address,
	}
}

// profileRequest is the body of PUT /api/users/profile
type profileRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Address  string `json:"address"`
}

func profileRequestFrom(p domain.Profile) profileRequest {
	return profileRequest{
		Fullname: p.FullName,
		Email:    p.Email,
		Mobile:   p.Mobile,
		Address:  p.Address,
	}
}

type messageDTO struct {
	ID         flexID      `json:"id"`
	Content    string      `json:"content"`
	Message    string      `json:"message"`
	ImageURL   string      `json:"imageUrl"`
	SenderRole string      `json:"senderRole"`
	SenderID   *int64      `json:"senderId"`
	Timestamp  backendTime `json:"timestamp"`
	CreatedAt  backendTime `json:"createdAt"`
	IsRead     bool        `json:"isRead"`
}

func (m messageDTO) toDomain(chatID int64) domain.ChatMessage {
	out := domain.ChatMessage{
		ID:         string(m.ID),
		ChatID:     chatID,
		Content:    firstNonEmpty(m.Content, m.Message),
		ImageURL:   m.ImageURL,
		SenderRole: m.SenderRole,
		Timestamp:  m.Timestamp.Time(),
		IsRead:     m.IsRead,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = m.CreatedAt.Time()
	}
	if m.SenderID != nil {
		out.SenderID = *m.SenderID
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
