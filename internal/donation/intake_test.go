package donation_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"merosamaj.org/internal/donation"
	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/store/memory"
)

type memBlobs struct {
	keys []string
	data map[string][]byte
	err  error
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.keys = append(m.keys, key)
	m.data[key] = b
	return "/uploads/" + key, nil
}

var (
	fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	donor    = &identity.Identity{ID: "d1", Email: "donor@example.org", DisplayName: "Ram"}
	form     = donation.FoodForm{FoodDescription: "Dal bhat for 20", Quantity: "20 plates", PickupLocation: "Patan"}
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newIntake(blobs donation.BlobStore) (*donation.Intake, *memory.Store) {
	mem := memory.New()
	return donation.NewIntake(mem, blobs, donation.WithIntakeClock(func() time.Time { return fixedNow })), mem
}

func TestSubmitFoodWithoutImage(t *testing.T) {
	blobs := &memBlobs{}
	in, mem := newIntake(blobs)
	listing, err := in.SubmitFood(context.Background(), donor, form, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	d := listing.Donation
	if d.ImageURL != nil {
		t.Fatalf("expected nil image url, got %q", *d.ImageURL)
	}
	if d.Status != donation.StatusAvailable || d.DonorName != "Ram" || d.DonorID != "d1" {
		t.Fatalf("unexpected donation: %+v", d)
	}
	if len(blobs.keys) != 0 {
		t.Fatalf("no upload expected")
	}
	stored, _ := mem.FoodDonations(context.Background(), donation.StatusAvailable, 10)
	if len(stored) != 1 || stored[0].ID != d.ID {
		t.Fatalf("listing not stored: %+v", stored)
	}
}

func TestSubmitFoodWithImage(t *testing.T) {
	blobs := &memBlobs{}
	in, _ := newIntake(blobs)
	img := &donation.Image{Filename: "thālī photo.png", ContentType: "image/png", Data: pngBytes(t, 640, 320)}
	listing, err := in.SubmitFood(context.Background(), donor, form, img)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	wantKey := "foodDonations/d1/1772359200000_thali_photo.png"
	if len(blobs.keys) != 1 || blobs.keys[0] != wantKey {
		t.Fatalf("keys = %v, want %s", blobs.keys, wantKey)
	}
	if listing.Donation.ImageURL == nil || *listing.Donation.ImageURL != "/uploads/"+wantKey {
		t.Fatalf("image url not recorded: %+v", listing.Donation.ImageURL)
	}
	if !strings.HasPrefix(listing.Preview, "data:image/jpeg;base64,") {
		t.Fatalf("missing preview")
	}
}

func TestSubmitFoodRefusesAnonymous(t *testing.T) {
	blobs := &memBlobs{}
	in, mem := newIntake(blobs)
	_, err := in.SubmitFood(context.Background(), nil, form, &donation.Image{Filename: "a.png", Data: pngBytes(t, 4, 4)})
	if !errors.Is(err, donation.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if len(blobs.keys) != 0 {
		t.Fatalf("upload attempted for anonymous submitter")
	}
	stored, _ := mem.FoodDonations(context.Background(), donation.StatusAvailable, 10)
	if len(stored) != 0 {
		t.Fatalf("record written for anonymous submitter")
	}
}

func TestSubmitFoodRequiredFields(t *testing.T) {
	in, _ := newIntake(&memBlobs{})
	for _, field := range []string{"foodDescription", "quantity", "pickupLocation"} {
		f := form
		switch field {
		case "foodDescription":
			f.FoodDescription = " "
		case "quantity":
			f.Quantity = ""
		case "pickupLocation":
			f.PickupLocation = ""
		}
		_, err := in.SubmitFood(context.Background(), donor, f, nil)
		var ferr *donation.FieldError
		if !errors.As(err, &ferr) || ferr.Field != field {
			t.Fatalf("%s: expected field error, got %v", field, err)
		}
	}
}

func TestSubmitFoodRejectsNonImage(t *testing.T) {
	blobs := &memBlobs{}
	in, _ := newIntake(blobs)
	_, err := in.SubmitFood(context.Background(), donor, form, &donation.Image{Filename: "notes.txt", Data: []byte("hello")})
	if !errors.Is(err, donation.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if len(blobs.keys) != 0 {
		t.Fatalf("invalid image uploaded")
	}
}

// pngHeader returns a PNG whose IHDR declares w×h RGBA pixels but carries
// no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha
	chunk := append([]byte("IHDR"), ihdr...)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(ihdr)))
	buf.Write(n[:])
	buf.Write(chunk)
	binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(chunk))
	buf.Write(n[:])
	return buf.Bytes()
}

func TestPreviewRejectsOversizedImage(t *testing.T) {
	_, err := donation.Preview(pngHeader(20000, 20000))
	if !errors.Is(err, donation.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}

	blobs := &memBlobs{}
	in, _ := newIntake(blobs)
	_, err = in.SubmitFood(context.Background(), donor, form, &donation.Image{Filename: "huge.png", Data: pngHeader(9000, 9000)})
	if !errors.Is(err, donation.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if len(blobs.keys) != 0 {
		t.Fatal("oversized image uploaded")
	}

	if _, err := donation.Preview(pngBytes(t, 640, 480)); err != nil {
		t.Fatalf("ordinary image rejected: %v", err)
	}
}

func TestSubmitFoodUploadFailure(t *testing.T) {
	in, mem := newIntake(&memBlobs{err: errors.New("bucket unavailable")})
	_, err := in.SubmitFood(context.Background(), donor, form, &donation.Image{Filename: "a.png", Data: pngBytes(t, 8, 8)})
	if !store.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	stored, _ := mem.FoodDonations(context.Background(), donation.StatusAvailable, 10)
	if len(stored) != 0 {
		t.Fatalf("record written after failed upload")
	}
}

func TestDonorName(t *testing.T) {
	tests := []struct {
		in   *identity.Identity
		want string
	}{
		{&identity.Identity{DisplayName: "Sita", Email: "s@example.org"}, "Sita"},
		{&identity.Identity{Email: "s@example.org"}, "s@example.org"},
		{&identity.Identity{}, "Anonymous Donor"},
		{nil, "Anonymous Donor"},
	}
	for _, tc := range tests {
		if got := donation.DonorName(tc.in); got != tc.want {
			t.Fatalf("DonorName(%+v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":           "photo.jpg",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\pic.png`: "pic.png",
		"café menu.jpeg":      "cafe_menu.jpeg",
		"":                    "image",
		"...":                 "image",
		".hidden.png":         "hidden.png",
	}
	for in, want := range tests {
		if got := donation.SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
