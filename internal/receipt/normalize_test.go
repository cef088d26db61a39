package receipt

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Normalizer", func() {
	var (
		normalizer *Normalizer
		fields     PartialFields
		filename   string
		settings   Settings
		receipt    *Receipt
		now        time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		normalizer = NewNormalizerWithDeps(&mockIDGenerator{id: "test-id-123"}, &mockTimeSource{now: now})
		fields = PartialFields{}
		filename = ""
		settings = DefaultSettings()
	})

	JustBeforeEach(func() {
		receipt = normalizer.Normalize(fields, filename, settings)
	})

	When("extraction returns a complete simple receipt", func() {
		BeforeEach(func() {
			fields = PartialFields{
				Merchant: "Cafe Mocha",
				Date:     "2024-03-10",
				Total:    ptr(45.50),
				Category: "Food",
			}
		})

		It("keeps the extracted fields", func() {
			Expect(receipt.Merchant).To(Equal("Cafe Mocha"))
			Expect(receipt.Date).To(Equal("2024-03-10"))
			Expect(receipt.Total).To(Equal(45.50))
			Expect(receipt.Category).To(Equal(Food))
		})

		It("defaults the tax to zero", func() {
			Expect(receipt.Tax).To(Equal(0.0))
		})

		It("stamps the currency, id and creation time", func() {
			Expect(receipt.Currency).To(Equal("₹"))
			Expect(receipt.ID).To(Equal("test-id-123"))
			Expect(receipt.CreatedAt).To(Equal(now.UnixMilli()))
		})

		It("starts with both flags cleared", func() {
			Expect(receipt.IsReimbursed).To(BeFalse())
			Expect(receipt.IsFavorite).To(BeFalse())
		})

		It("leaves the subtotal absent", func() {
			Expect(receipt.Subtotal).To(BeNil())
		})
	})

	When("itemized taxes are present", func() {
		BeforeEach(func() {
			fields = PartialFields{
				Merchant: "Spice Route",
				Total:    ptr(105.0),
				Tax:      ptr(99.0),
				Taxes: []TaxDetail{
					{Name: "CGST", Amount: 2.5},
					{Name: "SGST", Amount: 2.5},
				},
			}
		})

		It("uses their sum as the tax", func() {
			Expect(receipt.Tax).To(BeNumerically("~", 5.0, 1e-9))
		})

		It("keeps the breakdown", func() {
			Expect(receipt.Taxes).To(Equal([]TaxDetail{
				{Name: "CGST", Amount: 2.5},
				{Name: "SGST", Amount: 2.5},
			}))
		})
	})

	When("only a scalar tax is present", func() {
		BeforeEach(func() {
			fields = PartialFields{Tax: ptr(3.2)}
		})

		It("uses it", func() {
			Expect(receipt.Tax).To(Equal(3.2))
		})
	})

	When("the itemized taxes are empty", func() {
		BeforeEach(func() {
			fields = PartialFields{Tax: ptr(1.5), Taxes: []TaxDetail{}}
		})

		It("falls back to the scalar tax", func() {
			Expect(receipt.Tax).To(Equal(1.5))
		})

		It("keeps the empty breakdown distinct from an absent one", func() {
			Expect(receipt.Taxes).NotTo(BeNil())
			Expect(receipt.Taxes).To(BeEmpty())
		})
	})

	When("the merchant is missing", func() {
		When("a filename is given", func() {
			BeforeEach(func() {
				filename = "invoice.pdf"
			})

			It("uses the filename without its extension", func() {
				Expect(receipt.Merchant).To(Equal("invoice"))
			})
		})

		When("the filename has several dots and a directory", func() {
			BeforeEach(func() {
				filename = "/tmp/uploads/store.2024.jpg"
			})

			It("keeps the name up to the first dot", func() {
				Expect(receipt.Merchant).To(Equal("store"))
			})
		})

		When("the filename starts with a dot", func() {
			BeforeEach(func() {
				filename = ".hidden.png"
			})

			It("uses the placeholder", func() {
				Expect(receipt.Merchant).To(Equal(UnknownMerchant))
			})
		})

		When("no filename is given", func() {
			It("uses the placeholder", func() {
				Expect(receipt.Merchant).To(Equal(UnknownMerchant))
			})
		})

		When("the merchant is only whitespace", func() {
			BeforeEach(func() {
				fields.Merchant = "   "
				filename = "lunch.heic"
			})

			It("treats it as missing", func() {
				Expect(receipt.Merchant).To(Equal("lunch"))
			})
		})
	})

	When("the date is missing", func() {
		It("uses today", func() {
			Expect(receipt.Date).To(Equal("2024-01-15"))
		})
	})

	When("the total is missing", func() {
		It("uses zero", func() {
			Expect(receipt.Total).To(Equal(0.0))
		})
	})

	When("the total is negative", func() {
		BeforeEach(func() {
			fields.Total = ptr(-12.0)
		})

		It("clamps it to zero", func() {
			Expect(receipt.Total).To(Equal(0.0))
		})
	})

	When("the total is not a number", func() {
		BeforeEach(func() {
			fields.Total = ptr(math.NaN())
		})

		It("uses zero", func() {
			Expect(receipt.Total).To(Equal(0.0))
		})
	})

	When("the category is unknown", func() {
		BeforeEach(func() {
			fields.Category = "Groceries"
		})

		It("coerces it to Others", func() {
			Expect(receipt.Category).To(Equal(Others))
		})
	})

	When("the category differs only in case", func() {
		BeforeEach(func() {
			fields.Category = " health "
		})

		It("maps it onto the fixed set", func() {
			Expect(receipt.Category).To(Equal(Health))
		})
	})

	When("the discount is given as a negative amount", func() {
		BeforeEach(func() {
			fields.Discount = ptr(-10.0)
		})

		It("stores its magnitude", func() {
			Expect(*receipt.Discount).To(Equal(10.0))
		})
	})

	When("the document reports a different currency", func() {
		BeforeEach(func() {
			fields.Currency = "USD"
			settings = Settings{CurrencySymbol: "€", CurrencyCode: "EUR", Theme: ThemeDark}
		})

		It("uses the currency from settings", func() {
			Expect(receipt.Currency).To(Equal("€"))
		})
	})

	When("items are given", func() {
		var items []ReceiptItem

		BeforeEach(func() {
			items = []ReceiptItem{{Name: "Latte", Price: 4.5, Quantity: ptr(2.0)}}
			fields.Items = items
		})

		It("copies them", func() {
			Expect(receipt.Items).To(Equal(items))
			receipt.Items[0].Name = "changed"
			Expect(items[0].Name).To(Equal("Latte"))
		})
	})

	It("round trips through JSON unchanged", func() {
		fields = PartialFields{
			Merchant:      "Spice Route",
			Date:          "2024-03-10",
			Total:         ptr(105.0),
			Subtotal:      ptr(100.0),
			TaxRate:       ptr(5.0),
			Taxes:         []TaxDetail{{Name: "CGST", Amount: 2.5, Rate: ptr(2.5)}},
			ServiceCharge: ptr(0.0),
			Discount:      ptr(2.5),
			PaymentMethod: "UPI",
			Items:         []ReceiptItem{},
			Category:      "Food",
			Notes:         "team lunch",
		}
		r := normalizer.Normalize(fields, "", settings)

		data, err := json.Marshal(r)
		Expect(err).NotTo(HaveOccurred())

		var decoded Receipt
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(&decoded).To(Equal(r))
		Expect(decoded.Items).NotTo(BeNil())
	})
})

var _ = Describe("Reconcile", func() {
	var r *Receipt

	BeforeEach(func() {
		r = &Receipt{
			Total:    105,
			Subtotal: ptr(100.0),
			Tax:      5,
			Taxes:    []TaxDetail{{Name: "CGST", Amount: 2.5}, {Name: "SGST", Amount: 2.5}},
			Items:    []ReceiptItem{{Name: "Thali", Price: 100}},
		}
	})

	It("reports nothing when the amounts add up", func() {
		Expect(Reconcile(r)).To(BeEmpty())
	})

	It("reports a tax that disagrees with its breakdown", func() {
		r.Tax = 7
		Expect(Reconcile(r)).To(ContainElement(Discrepancy{Field: "tax", Expected: 5, Actual: 7}))
	})

	It("reports items that do not sum to the subtotal", func() {
		r.Items = append(r.Items, ReceiptItem{Name: "Lassi", Price: 20})
		Expect(Reconcile(r)).To(ConsistOf(Discrepancy{Field: "subtotal", Expected: 120, Actual: 100}))
	})

	It("accounts for service charge and discount in the total", func() {
		r.ServiceCharge = ptr(10.0)
		r.Discount = ptr(10.0)
		Expect(Reconcile(r)).To(BeEmpty())
	})

	It("does not modify the receipt", func() {
		r.Tax = 7
		Reconcile(r)
		Expect(r.Tax).To(Equal(7.0))
	})
})

var _ = Describe("ValidateManual", func() {
	It("accepts a merchant and a positive total", func() {
		Expect(ValidateManual(PartialFields{Merchant: "Cafe", Total: ptr(1.0)})).To(Succeed())
	})

	It("rejects a blank merchant", func() {
		err := ValidateManual(PartialFields{Merchant: "  ", Total: ptr(1.0)})
		Expect(errors.Is(err, ErrMerchantRequired)).To(BeTrue())
		Expect(errors.Is(err, ErrInvalidTotal)).To(BeFalse())
	})

	It("rejects a zero total", func() {
		err := ValidateManual(PartialFields{Merchant: "Cafe", Total: ptr(0.0)})
		Expect(errors.Is(err, ErrInvalidTotal)).To(BeTrue())
	})

	It("reports every problem at once", func() {
		err := ValidateManual(PartialFields{})
		Expect(errors.Is(err, ErrMerchantRequired)).To(BeTrue())
		Expect(errors.Is(err, ErrInvalidTotal)).To(BeTrue())
		Expect(IsValidationError(err)).To(BeTrue())
	})
})

var _ = Describe("Receipt", func() {
	It("derives the subtotal when none was captured", func() {
		r := &Receipt{Total: 105, Tax: 5}
		Expect(r.DisplaySubtotal()).To(Equal(100.0))
		r.Subtotal = ptr(98.0)
		Expect(r.DisplaySubtotal()).To(Equal(98.0))
	})

	It("falls back to a single tax line", func() {
		r := &Receipt{Tax: 5}
		Expect(r.TaxLines()).To(Equal([]TaxDetail{{Name: "Tax", Amount: 5}}))
	})

	It("uses the first letter of the merchant as its initial", func() {
		Expect((&Receipt{Merchant: "épicerie"}).Initial()).To(Equal("É"))
		Expect((&Receipt{}).Initial()).To(Equal("?"))
	})

	It("renormalizes to the same record from its fields", func() {
		n := NewNormalizerWithDeps(&mockIDGenerator{id: "same"}, &mockTimeSource{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)})
		original := n.Normalize(PartialFields{
			Merchant: "Spice Route",
			Date:     "2024-03-10",
			Total:    ptr(105.0),
			Taxes:    []TaxDetail{{Name: "CGST", Amount: 2.5}, {Name: "SGST", Amount: 2.5}},
			Items:    []ReceiptItem{{Name: "Thali", Price: 100}},
			Discount: ptr(3.0),
			Category: "Food",
		}, "", DefaultSettings())

		again := n.Normalize(original.Fields(), "", DefaultSettings())
		Expect(again).To(Equal(original))
	})

	It("copies slices when exposing fields", func() {
		r := &Receipt{Total: 10, Taxes: []TaxDetail{{Name: "VAT", Amount: 1}}}
		fields := r.Fields()
		fields.Taxes[0].Amount = 2
		*fields.Total = 20
		Expect(r.Taxes[0].Amount).To(Equal(1.0))
		Expect(r.Total).To(Equal(10.0))
		Expect(fields.Tax).To(BeNil())
	})

	It("defaults item quantity to one", func() {
		Expect(ReceiptItem{}.Qty()).To(Equal(1.0))
	})
})

var _ = Describe("Categories", func() {
	It("lists the fixed set in order", func() {
		Expect(CategoryNames()).To(Equal([]string{"Food", "Travel", "Shopping", "Utilities", "Health", "Entertainment", "Others"}))
	})

	It("knows which values are valid", func() {
		Expect(Category("Food").Valid()).To(BeTrue())
		Expect(Category("food").Valid()).To(BeFalse())
	})
})

var _ = Describe("Settings", func() {
	It("defaults to rupees and the system theme", func() {
		Expect(DefaultSettings()).To(Equal(Settings{CurrencySymbol: "₹", CurrencyCode: "INR", Theme: ThemeSystem}))
	})

	It("rejects unknown themes", func() {
		Expect(Settings{Theme: "sepia"}.Validate()).To(MatchError(ErrInvalidTheme))
	})

	It("switches currency by code", func() {
		s, err := DefaultSettings().WithCurrency("usd")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.CurrencyCode).To(Equal("USD"))
		Expect(s.CurrencySymbol).To(Equal("$"))
	})

	It("rejects unknown currency codes", func() {
		_, err := DefaultSettings().WithCurrency("XXX")
		Expect(err).To(MatchError(ErrUnknownCurrency))
	})
})
