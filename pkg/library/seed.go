package library

type seedGenre struct {
	id   int
	name string
}

type seedAuthor struct {
	id        int
	name      string
	birthYear int
}

type seedBook struct {
	id       int
	title    string
	authorID int
	genreID  int
	year     int
	rating   int
	notes    string
}

var sampleGenres = []seedGenre{
	{1, "Fiction"},
	{2, "Non-Fiction"},
	{3, "Science Fiction"},
	{4, "Mystery"},
	{5, "Biography"},
	{6, "Fantasy"},
	{7, "Historical Fiction"},
	{8, "Romance"},
	{9, "Thriller"},
	{10, "Self-Help"},
}

var sampleAuthors = []seedAuthor{
	{1, "J.K. Rowling", 1965},
	{2, "George Orwell", 1903},
	{3, "Jane Austen", 1775},
	{4, "Stephen King", 1947},
	{5, "Agatha Christie", 1890},
	{6, "Frank Herbert", 1920},
	{7, "J.R.R. Tolkien", 1892},
	{8, "Harper Lee", 1926},
	{9, "Fyodor Dostoevsky", 1821},
	{10, "Gabriel García Márquez", 1927},
	{11, "Leo Tolstoy", 1828},
	{12, "Ernest Hemingway", 1899},
	{13, "Mark Twain", 1835},
	{14, "C.S. Lewis", 1898},
	{15, "Charles Dickens", 1812},
}

var sampleBooks = []seedBook{
	{1, "Harry Potter and the Philosopher's Stone", 1, 6, 1997, 5, "The first book in the Harry Potter series."},
	{2, "1984", 2, 3, 1949, 5, "A dystopian social science fiction novel."},
	{3, "Pride and Prejudice", 3, 8, 1813, 4, "A romantic novel of manners."},
	{4, "The Shining", 4, 9, 1977, 4, "A horror novel set in an isolated hotel."},
	{5, "Murder on the Orient Express", 5, 4, 1934, 4, "A detective novel featuring Hercule Poirot."},
	{6, "Dune", 6, 3, 1965, 5, "A science fiction novel set in the distant future."},
	{7, "The Hobbit", 7, 6, 1937, 5, "A fantasy novel and children's book."},
	{8, "To Kill a Mockingbird", 8, 1, 1960, 5, "A novel about racial inequality in the American South."},
	{9, "Crime and Punishment", 9, 1, 1866, 4, "A novel focused on the mental anguish of a murderer."},
	{10, "One Hundred Years of Solitude", 10, 1, 1967, 5, "A landmark of magical realism."},
	{11, "War and Peace", 11, 7, 1869, 5, "A novel about Russian society during the Napoleonic era."},
	{12, "The Old Man and the Sea", 12, 1, 1952, 4, "A short novel about an aging Cuban fisherman."},
	{13, "The Adventures of Huckleberry Finn", 13, 1, 1884, 4, "A novel about a boy's journey down the Mississippi River."},
	{14, "The Chronicles of Narnia: The Lion, the Witch and the Wardrobe", 14, 6, 1950, 5, "A fantasy novel set in the magical land of Narnia."},
	{15, "Great Expectations", 15, 1, 1861, 4, "A novel about an orphan's rise in society."},
	{16, "Harry Potter and the Chamber of Secrets", 1, 6, 1998, 4, "The second book in the Harry Potter series."},
	{17, "Harry Potter and the Prisoner of Azkaban", 1, 6, 1999, 5, "The third book in the Harry Potter series."},
	{18, "Animal Farm", 2, 1, 1945, 4, "An allegorical novella about the Russian Revolution."},
	{19, "Emma", 3, 8, 1815, 4, "A novel about youthful hubris and romantic misunderstandings."},
	{20, "It", 4, 9, 1986, 4, "A horror novel about a shapeshifting entity."},
	{21, "Death on the Nile", 5, 4, 1937, 4, "A murder mystery set in Egypt."},
	{22, "Dune Messiah", 6, 3, 1969, 4, "The second novel in the Dune series."},
	{23, "The Lord of the Rings: The Fellowship of the Ring", 7, 6, 1954, 5, "The first volume of the Lord of the Rings trilogy."},
	{24, "Go Set a Watchman", 8, 1, 2015, 3, "A novel featuring characters from To Kill a Mockingbird."},
	{25, "The Brothers Karamazov", 9, 1, 1880, 5, "A philosophical novel about faith, doubt, and reason."},
}
